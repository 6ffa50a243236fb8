package token

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
)

var (
	// ErrMintNotAuthorized rejects supply creation from anything but
	// the mint ladder (and its one-time bootstrap path).
	ErrMintNotAuthorized = errors.New("not authorized")

	// ErrBurnNotAuthorized rejects supply destruction from anything
	// but the buy-and-burn engine.
	ErrBurnNotAuthorized = errors.New("not authorized")
)

// Dragon is the protocol token: a single-asset ledger whose supply can
// only grow through the mint ladder and shrink through the buy-and-burn
// engine. Both authorities are fixed at construction.
type Dragon struct {
	addr   chain.Address
	minter chain.Address
	burner chain.Address

	balances    map[chain.Address]*uint256.Int
	totalSupply *uint256.Int
}

// NewDragon creates the token ledger. minter is the component account
// allowed to mint, burner the one allowed to burn.
func NewDragon(addr, minter, burner chain.Address) *Dragon {
	return &Dragon{
		addr:        addr,
		minter:      minter,
		burner:      burner,
		balances:    make(map[chain.Address]*uint256.Int),
		totalSupply: uint256.NewInt(0),
	}
}

// Address returns the token's own address, used as a token selector.
func (d *Dragon) Address() chain.Address { return d.addr }

func (d *Dragon) BalanceOf(addr chain.Address) *uint256.Int {
	if b, ok := d.balances[addr]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

func (d *Dragon) TotalSupply() *uint256.Int {
	return d.totalSupply.Clone()
}

// Mint creates amount new tokens for to. Only the mint ladder account
// may call it.
func (d *Dragon) Mint(caller, to chain.Address, amount *uint256.Int) error {
	if caller != d.minter {
		return fmt.Errorf("dragon mint: %w", ErrMintNotAuthorized)
	}
	d.add(to, amount)
	d.totalSupply.Add(d.totalSupply, amount)
	return nil
}

// Burn destroys amount tokens held by the burner itself, reducing
// total supply.
func (d *Dragon) Burn(caller chain.Address, amount *uint256.Int) error {
	if caller != d.burner {
		return fmt.Errorf("dragon burn: %w", ErrBurnNotAuthorized)
	}
	bal, ok := d.balances[caller]
	if !ok || bal.Lt(amount) {
		return fmt.Errorf("dragon burn: %w", chain.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	d.totalSupply.Sub(d.totalSupply, amount)
	return nil
}

func (d *Dragon) Transfer(from, to chain.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	bal, ok := d.balances[from]
	if !ok || bal.Lt(amount) {
		return fmt.Errorf("dragon transfer from %s: %w", from, chain.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	d.add(to, amount)
	return nil
}

func (d *Dragon) add(addr chain.Address, amount *uint256.Int) {
	if b, ok := d.balances[addr]; ok {
		b.Add(b, amount)
		return
	}
	d.balances[addr] = amount.Clone()
}

type dragonSnapshot struct {
	balances    map[chain.Address]*uint256.Int
	totalSupply *uint256.Int
}

func (d *Dragon) Checkpoint() any {
	balances := make(map[chain.Address]*uint256.Int, len(d.balances))
	for addr, b := range d.balances {
		balances[addr] = b.Clone()
	}
	return dragonSnapshot{balances: balances, totalSupply: d.totalSupply.Clone()}
}

func (d *Dragon) Restore(snapshot any) {
	snap := snapshot.(dragonSnapshot)
	d.balances = snap.balances
	d.totalSupply = snap.totalSupply
}
