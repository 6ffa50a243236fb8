package token

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
)

// PositionInfo describes one staking position held with the external
// staking protocol.
type PositionInfo struct {
	MaturityTs time.Time
	Principal  *uint256.Int
	Reward     *uint256.Int
}

// StakingToken is the narrow surface of the external staking-asset
// protocol this system consumes. Its reward math, payout cycles and
// internal accounting are out of scope; only these calls are relied on.
type StakingToken interface {
	// Address returns the token's address, used as a token selector.
	Address() chain.Address

	BalanceOf(addr chain.Address) *uint256.Int
	Allowance(owner, spender chain.Address) *uint256.Int
	Transfer(from, to chain.Address, amount *uint256.Int) error
	// TransferFrom spends spender's allowance to move owner's tokens.
	TransferFrom(spender, owner, to chain.Address, amount *uint256.Int) error

	// OpenStake locks amount for owner and returns the position id.
	// Ids are per-owner and start at 1.
	OpenStake(owner chain.Address, amount *uint256.Int, durationHint time.Duration) (uint64, error)
	// ClosePosition ends a matured position, paying principal plus
	// reward in the staking asset to owner. The amount paid is returned.
	ClosePosition(owner chain.Address, id uint64) (*uint256.Int, error)
	GetPositionInfo(owner chain.Address, id uint64) (PositionInfo, error)

	// TriggerPayoutCycle runs the protocol's payout distribution.
	TriggerPayoutCycle()
	// AdvanceDailyAccounting runs the protocol's day-roll bookkeeping.
	AdvanceDailyAccounting()

	// ClaimablePayout reports owner's currently claimable
	// native-currency revenue without mutating anything.
	ClaimablePayout(owner chain.Address) *uint256.Int
	// ClaimPayout pays owner's claimable revenue to owner in native
	// currency and returns the amount.
	ClaimPayout(owner chain.Address) (*uint256.Int, error)
}

// LiquidityPool is the narrow surface of the AMM collaborator: price
// reads, a price-protected swap, and fee withdrawal for the
// protocol-owned position. Prices are target-per-source scaled by 1e18.
type LiquidityPool interface {
	// Addr is where swap inputs and liquidity deposits are sent.
	Addr() chain.Address

	SpotPrice(tokenIn, tokenOut chain.Address) (*uint256.Int, error)
	TwaPrice(tokenIn, tokenOut chain.Address, window time.Duration) (*uint256.Int, error)

	// SwapExactInput swaps amountIn of tokenIn for at least minOut of
	// tokenOut, crediting the output to recipient, and returns the
	// output amount.
	SwapExactInput(amountIn, minOut *uint256.Int, tokenIn, tokenOut, recipient chain.Address) (*uint256.Int, error)

	// CreatePosition deposits owner's amount0/amount1 (already
	// transferred to the pool) into a new liquidity position.
	CreatePosition(owner chain.Address, amount0, amount1 *uint256.Int) (uint64, error)

	// CollectFees withdraws accrued trading fees from the position,
	// crediting both amounts to the position owner.
	CollectFees(positionID uint64) (amount0, amount1 *uint256.Int, err error)
}

// PriceScale is the fixed-point denominator for pool price ratios.
var PriceScale = uint256.NewInt(1e18)
