package buyback

import (
	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
)

// VaultSink accumulates bought staking assets for the next stake.
type VaultSink struct {
	custody chain.Address
	vault   interface{ Add(amount *uint256.Int) }
}

func NewVaultSink(custody chain.Address, vault interface{ Add(amount *uint256.Int) }) *VaultSink {
	return &VaultSink{custody: custody, vault: vault}
}

// Recipient is the custody treasury: the vault is an accounting view
// over custody's staking-asset holdings.
func (s *VaultSink) Recipient() chain.Address { return s.custody }

func (s *VaultSink) Apply(out *uint256.Int) error {
	s.vault.Add(out)
	return nil
}

// Burner is the burn surface of the protocol token.
type Burner interface {
	Burn(caller chain.Address, amount *uint256.Int) error
}

// BurnSink destroys bought protocol tokens, shrinking total supply.
type BurnSink struct {
	engineAddr chain.Address
	dragon     Burner

	totalBurned *uint256.Int
}

func NewBurnSink(engineAddr chain.Address, dragon Burner) *BurnSink {
	return &BurnSink{engineAddr: engineAddr, dragon: dragon, totalBurned: uint256.NewInt(0)}
}

// Recipient is the engine itself: output lands on the engine address
// and is burned from there.
func (s *BurnSink) Recipient() chain.Address { return s.engineAddr }

func (s *BurnSink) Apply(out *uint256.Int) error {
	if err := s.dragon.Burn(s.engineAddr, out); err != nil {
		return err
	}
	s.totalBurned.Add(s.totalBurned, out)
	return nil
}

func (s *BurnSink) TotalBurned() *uint256.Int { return s.totalBurned.Clone() }

type burnSinkSnapshot struct {
	totalBurned *uint256.Int
}

func (s *BurnSink) Checkpoint() any {
	return burnSinkSnapshot{totalBurned: s.totalBurned.Clone()}
}

func (s *BurnSink) Restore(snapshot any) {
	s.totalBurned = snapshot.(burnSinkSnapshot).totalBurned
}
