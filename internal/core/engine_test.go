package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/core"
	"github.com/DragonX2024888/DragonX/internal/event"
	"github.com/DragonX2024888/DragonX/internal/extsim"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var begin = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type engineFixture struct {
	clock  *clockwork.FakeClock
	native *chain.NativeLedger
	titan  *extsim.StakingSim
	pool   *extsim.AMMSim
	engine *core.Engine
	events chan core.Output
	owner  chain.Address
	keeper chain.Address
	user   chain.Address
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(begin)
	native := chain.NewNativeLedger()
	titan := extsim.NewStakingSim(clock, native)
	pool := extsim.NewAMMSim(native, titan)
	owner := chain.AddressOf("test:owner")
	events := make(chan core.Output, 256)

	eng, err := core.Build(core.DefaultConfig(owner, begin), core.Deps{
		Clock:       clock,
		Logger:      zerolog.Nop(),
		Native:      native,
		Titan:       titan,
		Pool:        pool,
		PersistChan: events,
	})
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	pool.BindProtocolToken(eng.Token())
	pool.SetPrice(chain.ZeroAddress, titan.Address(), token.PriceScale)
	pool.SetPrice(chain.ZeroAddress, core.TokenAddr, token.PriceScale)

	return &engineFixture{
		clock: clock, native: native, titan: titan, pool: pool,
		engine: eng, events: events, owner: owner,
		keeper: chain.AddressOf("test:keeper"),
		user:   chain.AddressOf("test:alice"),
	}
}

func (f *engineFixture) bootstrapLiquidity(t *testing.T) {
	t.Helper()
	amount := uint256.NewInt(1_000_000)
	f.titan.Fund(f.owner, amount)
	f.titan.Approve(f.owner, core.BurnEngineAddr, amount)
	if _, err := f.engine.CreateInitialLiquidity(f.owner, amount); err != nil {
		t.Fatalf("create initial liquidity: %v", err)
	}
}

func (f *engineFixture) mint(t *testing.T, amount uint64) {
	t.Helper()
	a := uint256.NewInt(amount)
	f.titan.Fund(f.user, a)
	f.titan.Approve(f.user, core.CustodyAddr, a)
	if _, err := f.engine.Mint(f.user, a); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func (f *engineFixture) drainEvents() []*event.Envelope {
	var out []*event.Envelope
	for {
		select {
		case o := <-f.events:
			out = append(out, o.Envelope)
		default:
			return out
		}
	}
}

// ============================================================================
// Test: lifecycle
// ============================================================================

func TestEngine_BootstrapThenMint(t *testing.T) {
	f := newEngineFixture(t)
	f.bootstrapLiquidity(t)
	f.mint(t, 10_000)

	if got := f.engine.BalanceOf(f.user); !got.Eq(uint256.NewInt(10_000)) {
		t.Errorf("user balance = %s, want 10000", got.Dec())
	}
	supply := f.engine.Supply()
	// Pool seed + user mint + 8% genesis skim on the mint.
	if !supply.TotalSupply.Eq(uint256.NewInt(1_010_800)) {
		t.Errorf("total supply = %s, want 1010800", supply.TotalSupply.Dec())
	}

	envs := f.drainEvents()
	if len(envs) != 2 {
		t.Fatalf("events = %d, want 2", len(envs))
	}
	if envs[0].Type != event.TypeInitialLiquidityCreated || envs[1].Type != event.TypeMinted {
		t.Errorf("event types = %s, %s", envs[0].Type, envs[1].Type)
	}
	if envs[0].Sequence != 1 || envs[1].Sequence != 2 {
		t.Errorf("sequences = %d, %d, want 1, 2", envs[0].Sequence, envs[1].Sequence)
	}
	if f.engine.Sequence() != 2 {
		t.Errorf("engine sequence = %d, want 2", f.engine.Sequence())
	}
}

func TestEngine_MintBeforeLiquidityRejected(t *testing.T) {
	f := newEngineFixture(t)
	a := uint256.NewInt(100)
	f.titan.Fund(f.user, a)
	f.titan.Approve(f.user, core.CustodyAddr, a)
	if _, err := f.engine.Mint(f.user, a); err == nil {
		t.Fatal("mint before liquidity should fail")
	}
	if len(f.drainEvents()) != 0 {
		t.Error("rejected call should emit no events")
	}
	if f.engine.Sequence() != 0 {
		t.Errorf("sequence = %d, want 0", f.engine.Sequence())
	}
}

func TestEngine_StakeLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	f.bootstrapLiquidity(t)
	f.mint(t, 100_000)

	// 92000 sits in the vault after the genesis skim.
	if err := f.engine.Stake(f.keeper); err != nil {
		t.Fatalf("stake: %v", err)
	}
	st := f.engine.StakingStatus()
	if !st.TotalStaked.Eq(uint256.NewInt(92_000)) {
		t.Errorf("total staked = %s, want 92000", st.TotalStaked.Dec())
	}
	if !st.VaultBalance.IsZero() {
		t.Errorf("vault = %s, want 0", st.VaultBalance.Dec())
	}
	if st.MaturedFound {
		t.Error("no position should be matured yet")
	}

	f.clock.Advance(28 * 24 * time.Hour)
	st = f.engine.StakingStatus()
	if !st.MaturedFound || st.MaturedID != 1 {
		t.Fatalf("matured position not reported: %+v", st)
	}

	proceeds, err := f.engine.EndStakeAfterMaturity(f.keeper, st.MaturedInstance, st.MaturedID)
	if err != nil {
		t.Fatalf("end stake: %v", err)
	}
	if !proceeds.Eq(uint256.NewInt(99_360)) { // principal + 8%
		t.Errorf("proceeds = %s, want 99360", proceeds.Dec())
	}
	st = f.engine.StakingStatus()
	if !st.VaultBalance.Eq(uint256.NewInt(99_360)) {
		t.Errorf("vault after close = %s, want 99360", st.VaultBalance.Dec())
	}
}

func TestEngine_EndStakeUnknownInstance(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.EndStakeAfterMaturity(f.keeper, chain.AddressOf("test:nowhere"), 1)
	if err == nil || err.Error() != "invalid ID" {
		t.Errorf("got %v, want %q", err, "invalid ID")
	}
}

func TestEngine_RevenueClaimFlow(t *testing.T) {
	f := newEngineFixture(t)
	f.bootstrapLiquidity(t)
	f.mint(t, 100_000)
	if err := f.engine.Stake(f.keeper); err != nil {
		t.Fatalf("stake: %v", err)
	}

	acct := f.engine.StakingStatus().Accounts[0].Instance
	f.titan.AccrueRevenue(acct, uint256.NewInt(10_000))

	split, err := f.engine.Claim(f.keeper)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !split.BuyBurnShare.Eq(uint256.NewInt(2500)) {
		t.Errorf("buy-burn share = %s, want 2500", split.BuyBurnShare.Dec())
	}

	// The buy engine converts its 6650 into vault assets.
	f.titan.Fund(f.pool.Addr(), uint256.NewInt(1_000_000))
	res, err := f.engine.TriggerBuy(f.keeper)
	if err != nil {
		t.Fatalf("trigger buy: %v", err)
	}
	wantOut := uint256.NewInt(6650 - 33) // minus 0.5% incentive, 1:1 price
	if !res.AmountOut.Eq(wantOut) {
		t.Errorf("buy out = %s, want %s", res.AmountOut.Dec(), wantOut.Dec())
	}

	// The burn engine converts its 2500 into burned supply.
	supplyBefore := f.engine.Supply().TotalSupply
	res, err = f.engine.TriggerBuyAndBurn(f.keeper)
	if err != nil {
		t.Fatalf("trigger buy and burn: %v", err)
	}
	burned := new(uint256.Int).Sub(supplyBefore, f.engine.Supply().TotalSupply)
	if !burned.Eq(res.AmountOut) {
		t.Errorf("supply shrank by %s, trigger reported %s", burned.Dec(), res.AmountOut.Dec())
	}
	if got := f.engine.Supply().TotalBurned; !got.Eq(res.AmountOut) {
		t.Errorf("total burned = %s, want %s", got.Dec(), res.AmountOut.Dec())
	}
}

// ============================================================================
// Test: rollback
// ============================================================================

func TestEngine_FailedTriggerRollsBackAllEffects(t *testing.T) {
	f := newEngineFixture(t)
	f.bootstrapLiquidity(t)

	// Revenue on the burn engine but a pool with no protocol tokens
	// to pay out: the swap fails after the incentive and the swap
	// funding have already moved.
	f.native.Credit(core.BurnEngineAddr, uint256.NewInt(10_000))
	// Price the swap so the implied output vastly exceeds what the
	// pool holds; the payout then fails mid-call.
	poolDragon := f.engine.BalanceOf(f.pool.Addr())
	excessive := new(uint256.Int).Add(poolDragon, uint256.NewInt(1))
	f.pool.SetPrice(chain.ZeroAddress, core.TokenAddr,
		new(uint256.Int).Mul(token.PriceScale, excessive))

	_, err := f.engine.TriggerBuyAndBurn(f.keeper)
	if err == nil {
		t.Fatal("trigger should fail when the pool cannot pay")
	}
	// Everything is rolled back: the engine keeps its funds, the
	// keeper got no fee, and a retry after the interval would see the
	// original state.
	if got := f.native.BalanceOf(core.BurnEngineAddr); !got.Eq(uint256.NewInt(10_000)) {
		t.Errorf("engine native = %s, want 10000", got.Dec())
	}
	if got := f.native.BalanceOf(f.keeper); !got.IsZero() {
		t.Errorf("keeper native = %s, want 0", got.Dec())
	}
	if got := f.native.BalanceOf(f.pool.Addr()); !got.IsZero() {
		t.Errorf("pool native = %s, want 0", got.Dec())
	}
	if f.engine.Sequence() != 1 { // only the bootstrap event
		t.Errorf("sequence = %d, want 1", f.engine.Sequence())
	}
}

func TestEngine_BuyCooldownSurvivesAcrossCalls(t *testing.T) {
	f := newEngineFixture(t)
	f.titan.Fund(f.pool.Addr(), uint256.NewInt(1_000_000))
	f.native.Credit(core.BuyEngineAddr, uint256.NewInt(100_000))

	if _, err := f.engine.TriggerBuy(f.keeper); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if _, err := f.engine.TriggerBuy(f.keeper); !errors.Is(err, chain.ErrCooldownActive) {
		t.Fatalf("got %v, want ErrCooldownActive", err)
	}
	f.clock.Advance(15 * time.Minute)
	if _, err := f.engine.TriggerBuy(f.keeper); err != nil {
		t.Errorf("trigger after interval: %v", err)
	}
}

// ============================================================================
// Test: configuration
// ============================================================================

func TestEngine_OwnerSetters(t *testing.T) {
	f := newEngineFixture(t)

	if err := f.engine.SetBuySlippageBps(f.keeper, 1000); !errors.Is(err, chain.ErrNotOwner) {
		t.Errorf("non-owner: got %v, want ErrNotOwner", err)
	}
	if err := f.engine.SetBuySlippageBps(f.owner, 1000); err != nil {
		t.Errorf("owner set slippage: %v", err)
	}
	if got := f.engine.BuyStatus().SlippageBps; got != 1000 {
		t.Errorf("slippage = %d, want 1000", got)
	}

	if err := f.engine.SetBurnSlippageBps(f.owner, 2000); err == nil || err.Error() != "5-15% only" {
		t.Errorf("out of range: got %v, want %q", err, "5-15% only")
	}
	// The rejected setter left the old value in place.
	if got := f.engine.BurnStatus().SlippageBps; got != 500 {
		t.Errorf("burn slippage = %d, want 500", got)
	}

	if err := f.engine.SetStakeMaxOpen(f.owner, 5); err != nil {
		t.Errorf("set max open: %v", err)
	}
	if got := f.engine.StakingStatus().MaxOpenPerAccount; got != 5 {
		t.Errorf("max open = %d, want 5", got)
	}
	if err := f.engine.SetStakeImmediateThreshold(f.owner, uint256.NewInt(0)); err == nil {
		t.Error("zero threshold should be rejected")
	}
}

// ============================================================================
// Test: guards wired by the builder
// ============================================================================

func TestBuild_CustodyRejectsNonAccountNative(t *testing.T) {
	f := newEngineFixture(t)
	donor := chain.AddressOf("test:donor")
	f.native.Credit(donor, uint256.NewInt(10))

	err := f.native.Transfer(donor, core.CustodyAddr, uint256.NewInt(10))
	if !errors.Is(err, chain.ErrUnauthorizedSender) {
		t.Errorf("custody: got %v, want ErrUnauthorizedSender", err)
	}
	err = f.native.Transfer(donor, core.BuyEngineAddr, uint256.NewInt(10))
	if !errors.Is(err, chain.ErrUnauthorizedSender) {
		t.Errorf("buy engine: got %v, want ErrUnauthorizedSender", err)
	}
}

func TestBuild_RequiresOwnerAndDeps(t *testing.T) {
	clock := clockwork.NewFakeClockAt(begin)
	native := chain.NewNativeLedger()
	titan := extsim.NewStakingSim(clock, native)
	pool := extsim.NewAMMSim(native, titan)

	_, err := core.Build(core.DefaultConfig(chain.ZeroAddress, begin), core.Deps{
		Clock: clock, Native: native, Titan: titan, Pool: pool,
	})
	if err == nil {
		t.Error("zero owner should be rejected")
	}
	_, err = core.Build(core.DefaultConfig(chain.AddressOf("test:owner"), begin), core.Deps{
		Clock: clock, Native: native, Titan: titan,
	})
	if err == nil {
		t.Error("missing pool should be rejected")
	}
}

func TestBuild_StartSequenceResumesNumbering(t *testing.T) {
	clock := clockwork.NewFakeClockAt(begin)
	native := chain.NewNativeLedger()
	titan := extsim.NewStakingSim(clock, native)
	pool := extsim.NewAMMSim(native, titan)
	owner := chain.AddressOf("test:owner")
	events := make(chan core.Output, 16)

	eng, err := core.Build(core.DefaultConfig(owner, begin), core.Deps{
		Clock: clock, Logger: zerolog.Nop(), Native: native, Titan: titan, Pool: pool,
		PersistChan: events, StartSequence: 41,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	pool.BindProtocolToken(eng.Token())

	amount := uint256.NewInt(1000)
	titan.Fund(owner, amount)
	titan.Approve(owner, core.BurnEngineAddr, amount)
	if _, err := eng.CreateInitialLiquidity(owner, amount); err != nil {
		t.Fatalf("create liquidity: %v", err)
	}
	out := <-events
	if out.Envelope.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", out.Envelope.Sequence)
	}
}
