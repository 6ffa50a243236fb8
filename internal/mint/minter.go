package mint

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var (
	ErrMintingNotYetActive = errors.New("MintingNotYetActive")
	ErrMintingPeriodOver   = errors.New("MintingPeriodOver")
	// ErrInsufficientAllowance means the caller has not pre-authorized
	// the transfer of the deposit.
	ErrInsufficientAllowance = errors.New("InsufficientAllowance")
	ErrInsufficientBalance   = errors.New("InsufficientBalance")
	// ErrLiquidityNotMintedYet blocks all minting until the one-time
	// bootstrap liquidity has been created.
	ErrLiquidityNotMintedYet = errors.New("LiquidityNotMintedYet")

	errNotAuthorized = errors.New("not authorized")
	errAlreadyMinted = errors.New("already minted")
)

// Ladder converts deposits of the staking asset into newly issued
// protocol-token supply during the enrollment window, at the ratio the
// schedule dictates, skimming the genesis share on both sides.
type Ladder struct {
	cfg   WindowConfig
	clock clockwork.Clock

	titan   token.StakingToken
	dragon  *token.Dragon
	custody chain.Address
	vault   vaultSink

	// liquidityMinter is the buy-and-burn engine account, the only
	// caller allowed to use the one-time bootstrap mint.
	liquidityMinter chain.Address
	liquidityMinted bool
}

// vaultSink is the slice of the vault the ladder needs.
type vaultSink interface {
	Add(amount *uint256.Int)
}

func NewLadder(
	cfg WindowConfig,
	clock clockwork.Clock,
	titan token.StakingToken,
	dragon *token.Dragon,
	custody chain.Address,
	vault vaultSink,
	liquidityMinter chain.Address,
) *Ladder {
	return &Ladder{
		cfg:             cfg,
		clock:           clock,
		titan:           titan,
		dragon:          dragon,
		custody:         custody,
		vault:           vault,
		liquidityMinter: liquidityMinter,
	}
}

// Result is the full breakdown of one mint.
type Result struct {
	Amount             *uint256.Int
	RatioBps           uint16
	Minted             *uint256.Int
	GenesisDragonShare *uint256.Int
	GenesisAssetShare  *uint256.Int
}

// Mint pulls amount of the staking asset from the caller and credits
// the caller with newly minted protocol tokens at the current ratio.
// The genesis skim of the minted supply is minted additionally (it is
// inflationary, not carved from the caller's amount); the asset skim
// stays in custody but outside the vault.
func (l *Ladder) Mint(caller chain.Address, amount *uint256.Int) (Result, error) {
	if !l.liquidityMinted {
		return Result{}, ErrLiquidityNotMintedYet
	}
	now := l.clock.Now()
	if now.Before(l.cfg.Begin) {
		return Result{}, ErrMintingNotYetActive
	}
	if !now.Before(l.cfg.End) {
		return Result{}, ErrMintingPeriodOver
	}
	if l.titan.Allowance(caller, l.custody).Lt(amount) {
		return Result{}, ErrInsufficientAllowance
	}
	if l.titan.BalanceOf(caller).Lt(amount) {
		return Result{}, ErrInsufficientBalance
	}

	// Order matters: pull first, then convert, then skim.
	if err := l.titan.TransferFrom(l.custody, caller, l.custody, amount); err != nil {
		return Result{}, fmt.Errorf("mint deposit: %w", err)
	}

	ratio := l.cfg.RatioBps(now)
	minted := chain.ApplyRatioBps(amount, ratio)
	if err := l.dragon.Mint(l.custody, caller, minted); err != nil {
		return Result{}, fmt.Errorf("mint supply: %w", err)
	}

	// Both skims are computed independently against the input and the
	// output; neither is chained through the other.
	genesisDragon := chain.BpsShare(minted, l.cfg.GenesisShareBps)
	if err := l.dragon.Mint(l.custody, l.custody, genesisDragon); err != nil {
		return Result{}, fmt.Errorf("mint genesis share: %w", err)
	}
	genesisAsset := chain.BpsShare(amount, l.cfg.GenesisShareBps)

	vaultCredit := new(uint256.Int).Sub(amount, genesisAsset)
	l.vault.Add(vaultCredit)

	return Result{
		Amount:             amount.Clone(),
		RatioBps:           ratio,
		Minted:             minted,
		GenesisDragonShare: genesisDragon,
		GenesisAssetShare:  genesisAsset,
	}, nil
}

// MintInitialLiquidity is the one-time privileged bootstrap entry
// point. It bypasses the window and the ratio and may only be called
// by the buy-and-burn engine.
func (l *Ladder) MintInitialLiquidity(caller, to chain.Address, amount *uint256.Int) error {
	if caller != l.liquidityMinter {
		return errNotAuthorized
	}
	if l.liquidityMinted {
		return errAlreadyMinted
	}
	if err := l.dragon.Mint(l.custody, to, amount); err != nil {
		return fmt.Errorf("mint initial liquidity: %w", err)
	}
	l.liquidityMinted = true
	return nil
}

// LiquidityMinted reports whether the bootstrap has happened.
func (l *Ladder) LiquidityMinted() bool { return l.liquidityMinted }

// Window returns the enrollment window timestamps.
func (l *Ladder) Window() (begin, end time.Time) { return l.cfg.Begin, l.cfg.End }

// CurrentRatioBps is the ratio a mint would receive right now.
func (l *Ladder) CurrentRatioBps() uint16 { return l.cfg.RatioBps(l.clock.Now()) }

func (l *Ladder) Checkpoint() any {
	return l.liquidityMinted
}

func (l *Ladder) Restore(snapshot any) {
	l.liquidityMinted = snapshot.(bool)
}
