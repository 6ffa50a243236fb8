package mint

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var (
	errNoBalance        = errors.New("no balance")
	ErrUnsupportedToken = errors.New("unsupported token selector")
)

// Allocator accumulates and releases the protocol owner's skims: the
// self-held protocol-token balance (minted genesis shares), the custody
// staking-asset surplus over the vault (deposit skims), and the custody
// native balance (claimed revenue shares). Nothing is tracked
// separately; each claim is computed from ledger state on demand.
type Allocator struct {
	owner   chain.Address
	custody chain.Address

	dragon *token.Dragon
	titan  token.StakingToken
	native *chain.NativeLedger
	vault  vaultView
}

type vaultView interface {
	Balance() *uint256.Int
}

func NewAllocator(
	owner, custody chain.Address,
	dragon *token.Dragon,
	titan token.StakingToken,
	native *chain.NativeLedger,
	vault vaultView,
) *Allocator {
	return &Allocator{
		owner:   owner,
		custody: custody,
		dragon:  dragon,
		titan:   titan,
		native:  native,
		vault:   vault,
	}
}

// Claim releases the accumulated allocation for the selected token to
// the owner. The zero address selects the native currency.
func (a *Allocator) Claim(caller chain.Address, selector chain.Address) (*uint256.Int, error) {
	if caller != a.owner {
		return nil, chain.ErrNotOwner
	}

	switch selector {
	case a.dragon.Address():
		amount := a.dragon.BalanceOf(a.custody)
		if amount.IsZero() {
			return nil, errNoBalance
		}
		if err := a.dragon.Transfer(a.custody, a.owner, amount); err != nil {
			return nil, fmt.Errorf("claim genesis dragon: %w", err)
		}
		return amount, nil

	case a.titan.Address():
		// The deposit skim is exactly the custody holdings that were
		// excluded from the vault.
		amount := a.titan.BalanceOf(a.custody)
		amount.Sub(amount, a.vault.Balance())
		if amount.IsZero() {
			return nil, errNoBalance
		}
		if err := a.titan.Transfer(a.custody, a.owner, amount); err != nil {
			return nil, fmt.Errorf("claim genesis asset: %w", err)
		}
		return amount, nil

	case chain.ZeroAddress:
		amount := a.native.BalanceOf(a.custody)
		if amount.IsZero() {
			return nil, errNoBalance
		}
		if err := a.native.Transfer(a.custody, a.owner, amount); err != nil {
			return nil, fmt.Errorf("claim genesis native: %w", err)
		}
		return amount, nil

	default:
		return nil, ErrUnsupportedToken
	}
}

// Pending reports the three claimable allocations without mutating.
func (a *Allocator) Pending() (dragon, asset, native *uint256.Int) {
	dragon = a.dragon.BalanceOf(a.custody)
	asset = a.titan.BalanceOf(a.custody)
	asset.Sub(asset, a.vault.Balance())
	native = a.native.BalanceOf(a.custody)
	return dragon, asset, native
}
