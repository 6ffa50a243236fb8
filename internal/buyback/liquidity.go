package buyback

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var (
	errAlreadyMinted   = errors.New("already minted")
	errAllowanceTooLow = errors.New("allowance too low")
	errBalanceTooLow   = errors.New("balance too low")
	ErrNoLiquidity     = errors.New("liquidity not created yet")
)

// LiquidityMinter mints the one-time liquidity supply of the protocol
// token. The mint ladder implements it.
type LiquidityMinter interface {
	MintInitialLiquidity(caller, to chain.Address, amount *uint256.Int) error
}

// LiquidityManager owns the protocol's single pool position: it seeds
// the pool once at a 1:1 ratio and collects the position's trading
// fees afterwards. It shares the burn engine's address so collected
// protocol tokens are burned in place and collected staking assets
// feed the vault.
type LiquidityManager struct {
	addr    chain.Address
	owner   chain.Address
	custody chain.Address
	titan   token.StakingToken
	dragon  interface {
		Transfer(from, to chain.Address, amount *uint256.Int) error
		BalanceOf(addr chain.Address) *uint256.Int
	}
	pool   token.LiquidityPool
	minter LiquidityMinter
	burn   *BurnSink
	vault  interface{ Add(amount *uint256.Int) }

	created    bool
	positionID uint64

	totalFeesBurned    *uint256.Int
	totalFeesCollected *uint256.Int
}

func NewLiquidityManager(
	addr, owner, custody chain.Address,
	titan token.StakingToken,
	dragon interface {
		Transfer(from, to chain.Address, amount *uint256.Int) error
		BalanceOf(addr chain.Address) *uint256.Int
	},
	pool token.LiquidityPool,
	minter LiquidityMinter,
	burn *BurnSink,
	vault interface{ Add(amount *uint256.Int) },
) *LiquidityManager {
	return &LiquidityManager{
		addr:               addr,
		owner:              owner,
		custody:            custody,
		titan:              titan,
		dragon:             dragon,
		pool:               pool,
		minter:             minter,
		burn:               burn,
		vault:              vault,
		totalFeesBurned:    uint256.NewInt(0),
		totalFeesCollected: uint256.NewInt(0),
	}
}

// CreateInitialLiquidity seeds the pool with caller-supplied staking
// assets and an equal one-time protocol-token mint. Owner-only,
// succeeds once.
func (m *LiquidityManager) CreateInitialLiquidity(call chain.Call, amount *uint256.Int) (uint64, error) {
	if call.Caller != m.owner {
		return 0, chain.ErrNotOwner
	}
	if m.created {
		return 0, errAlreadyMinted
	}
	if m.titan.Allowance(call.Caller, m.addr).Lt(amount) {
		return 0, errAllowanceTooLow
	}
	if m.titan.BalanceOf(call.Caller).Lt(amount) {
		return 0, errBalanceTooLow
	}

	m.created = true

	if err := m.titan.TransferFrom(m.addr, call.Caller, m.pool.Addr(), amount); err != nil {
		return 0, fmt.Errorf("pull liquidity asset: %w", err)
	}
	if err := m.minter.MintInitialLiquidity(m.addr, m.pool.Addr(), amount); err != nil {
		return 0, err
	}
	id, err := m.pool.CreatePosition(m.addr, amount, amount)
	if err != nil {
		return 0, fmt.Errorf("create position: %w", err)
	}
	m.positionID = id
	return id, nil
}

// CollectFees withdraws the position's accrued trading fees: the
// protocol-token side is burned, the staking-asset side goes to
// custody for the next stake. Permissionless.
func (m *LiquidityManager) CollectFees() (dragonFees, titanFees *uint256.Int, err error) {
	if !m.created {
		return nil, nil, ErrNoLiquidity
	}
	dragonFees, titanFees, err = m.pool.CollectFees(m.positionID)
	if err != nil {
		return nil, nil, fmt.Errorf("collect fees: %w", err)
	}
	if !dragonFees.IsZero() {
		if err := m.burn.Apply(dragonFees); err != nil {
			return nil, nil, err
		}
		m.totalFeesBurned.Add(m.totalFeesBurned, dragonFees)
	}
	if !titanFees.IsZero() {
		if err := m.titan.Transfer(m.addr, m.custody, titanFees); err != nil {
			return nil, nil, fmt.Errorf("forward fees: %w", err)
		}
		m.vault.Add(titanFees)
		m.totalFeesCollected.Add(m.totalFeesCollected, titanFees)
	}
	return dragonFees, titanFees, nil
}

func (m *LiquidityManager) Created() bool                    { return m.created }
func (m *LiquidityManager) PositionID() uint64               { return m.positionID }
func (m *LiquidityManager) TotalFeesBurned() *uint256.Int    { return m.totalFeesBurned.Clone() }
func (m *LiquidityManager) TotalFeesCollected() *uint256.Int { return m.totalFeesCollected.Clone() }

type liquiditySnapshot struct {
	created            bool
	positionID         uint64
	totalFeesBurned    *uint256.Int
	totalFeesCollected *uint256.Int
}

func (m *LiquidityManager) Checkpoint() any {
	return liquiditySnapshot{
		created:            m.created,
		positionID:         m.positionID,
		totalFeesBurned:    m.totalFeesBurned.Clone(),
		totalFeesCollected: m.totalFeesCollected.Clone(),
	}
}

func (m *LiquidityManager) Restore(snapshot any) {
	snap := snapshot.(liquiditySnapshot)
	m.created = snap.created
	m.positionID = snap.positionID
	m.totalFeesBurned = snap.totalFeesBurned
	m.totalFeesCollected = snap.totalFeesCollected
}
