package core

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/token"
)

// All read views take the engine lock so they never observe a call
// half-applied.

// SupplyView reports protocol-token supply facts.
type SupplyView struct {
	TotalSupply *uint256.Int
	TotalBurned *uint256.Int
}

func (e *Engine) Supply() SupplyView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return SupplyView{
		TotalSupply: e.dragon.TotalSupply(),
		TotalBurned: e.burnSink.TotalBurned(),
	}
}

// MintView reports the ladder's current position.
type MintView struct {
	WindowBegin     time.Time
	WindowEnd       time.Time
	RatioBps        uint16
	LiquidityMinted bool
}

func (e *Engine) MintStatus() MintView {
	e.mu.Lock()
	defer e.mu.Unlock()
	begin, end := e.ladder.Window()
	return MintView{
		WindowBegin:     begin,
		WindowEnd:       end,
		RatioBps:        e.ladder.CurrentRatioBps(),
		LiquidityMinted: e.ladder.LiquidityMinted(),
	}
}

// BuybackView reports one conversion engine's state.
type BuybackView struct {
	Name                string
	LastCall            time.Time
	NextCall            time.Time
	Balance             *uint256.Int
	CapPerSwap          *uint256.Int
	Interval            time.Duration
	SlippageBps         uint16
	TwaWindow           time.Duration
	IncentiveFeeBps     uint16
	NextTriggerAmount   *uint256.Int
	NextTriggerFee      *uint256.Int
	TotalSourceUsed     *uint256.Int
	TotalTargetAcquired *uint256.Int
}

func (e *Engine) BuyStatus() BuybackView  { return e.buybackStatus(e.buy) }
func (e *Engine) BurnStatus() BuybackView { return e.buybackStatus(e.burn) }

func (e *Engine) buybackStatus(b interface {
	Name() string
	Addr() chain.Address
	LastCall() time.Time
	NextCall() time.Time
	CapPerSwap() *uint256.Int
	Interval() time.Duration
	SlippageBps() uint16
	TwaWindow() time.Duration
	IncentiveFeeBps() uint16
	NextTriggerAmount() *uint256.Int
	NextTriggerIncentive() *uint256.Int
	TotalSourceUsed() *uint256.Int
	TotalTargetAcquired() *uint256.Int
}) BuybackView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return BuybackView{
		Name:                b.Name(),
		LastCall:            b.LastCall(),
		NextCall:            b.NextCall(),
		Balance:             e.native.BalanceOf(b.Addr()),
		CapPerSwap:          b.CapPerSwap(),
		Interval:            b.Interval(),
		SlippageBps:         b.SlippageBps(),
		TwaWindow:           b.TwaWindow(),
		IncentiveFeeBps:     b.IncentiveFeeBps(),
		NextTriggerAmount:   b.NextTriggerAmount(),
		NextTriggerFee:      b.NextTriggerIncentive(),
		TotalSourceUsed:     b.TotalSourceUsed(),
		TotalTargetAcquired: b.TotalTargetAcquired(),
	}
}

// StakeAccountView describes one stake account.
type StakeAccountView struct {
	Instance    chain.Address
	OpenCount   int
	ClosedCount int
	Active      bool
}

// StakingView reports the registry's state.
type StakingView struct {
	VaultBalance      *uint256.Int
	TotalStaked       *uint256.Int
	TotalUnstaked     *uint256.Int
	NextStakeTs       time.Time
	MaxOpenPerAccount int
	Accounts          []StakeAccountView

	// MaturedInstance/MaturedID point at the earliest closeable
	// position when MaturedFound is set.
	MaturedFound    bool
	MaturedInstance chain.Address
	MaturedID       uint64
}

func (e *Engine) StakingStatus() StakingView {
	e.mu.Lock()
	defer e.mu.Unlock()
	active := e.registry.Active()
	view := StakingView{
		VaultBalance:      e.vault.Balance(),
		TotalStaked:       e.registry.TotalStaked(),
		TotalUnstaked:     e.registry.TotalUnstaked(),
		NextStakeTs:       e.registry.NextStakeTs(),
		MaxOpenPerAccount: e.registry.MaxOpenPerAccount(),
	}
	for _, acct := range e.registry.Accounts() {
		view.Accounts = append(view.Accounts, StakeAccountView{
			Instance:    acct.Addr(),
			OpenCount:   acct.OpenCount(),
			ClosedCount: acct.ClosedCount(),
			Active:      acct == active,
		})
	}
	if m := e.registry.StakeReachedMaturity(); m.Found {
		view.MaturedFound = true
		view.MaturedInstance = m.Instance
		view.MaturedID = m.ID
	}
	return view
}

// RevenueView reports the claim distributor's state.
type RevenueView struct {
	TotalClaimable  *uint256.Int
	IncentiveFee    *uint256.Int
	Pending         *uint256.Int
	TotalClaimed    *uint256.Int
	GenesisShareBps uint16
	BuyBurnShareBps uint16
	IncentiveFeeBps uint16
}

func (e *Engine) RevenueStatus() RevenueView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return RevenueView{
		TotalClaimable:  e.dist.TotalClaimable(),
		IncentiveFee:    e.dist.IncentiveFeeForClaim(),
		Pending:         e.dist.Pending(),
		TotalClaimed:    e.dist.TotalClaimed(),
		GenesisShareBps: e.dist.GenesisShareBps(),
		BuyBurnShareBps: e.dist.BuyBurnShareBps(),
		IncentiveFeeBps: e.dist.IncentiveFeeBps(),
	}
}

// GenesisView reports the unclaimed genesis allocations.
type GenesisView struct {
	Token  *uint256.Int
	Asset  *uint256.Int
	Native *uint256.Int
}

func (e *Engine) GenesisStatus() GenesisView {
	e.mu.Lock()
	defer e.mu.Unlock()
	dragon, asset, native := e.genesis.Pending()
	return GenesisView{Token: dragon, Asset: asset, Native: native}
}

// BalanceOf reports one holder's protocol-token balance.
func (e *Engine) BalanceOf(addr chain.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dragon.BalanceOf(addr)
}

// Sequence reports the last committed event sequence.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// LiquidityPositionID reports the protocol pool position, zero until
// initial liquidity exists.
func (e *Engine) LiquidityPositionID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liquidity.PositionID()
}

// Token exposes the protocol token for collaborators constructed
// outside Build, such as the pool binding.
func (e *Engine) Token() *token.Dragon { return e.dragon }
