package buyback_test

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/DragonX2024888/DragonX/internal/buyback"
	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/extsim"
	"github.com/DragonX2024888/DragonX/internal/staking"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var start = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type engineFixture struct {
	clock   *clockwork.FakeClock
	native  *chain.NativeLedger
	titan   *extsim.StakingSim
	dragon  *token.Dragon
	pool    *extsim.AMMSim
	vault   *staking.Vault
	custody chain.Address
	keeper  chain.Address
}

func newEngineFixture() *engineFixture {
	clock := clockwork.NewFakeClockAt(start)
	native := chain.NewNativeLedger()
	titan := extsim.NewStakingSim(clock, native)
	custody := chain.AddressOf("test:custody")
	burnAddr := chain.AddressOf("test:burn-engine")
	dragon := token.NewDragon(chain.AddressOf("test:token"), custody, burnAddr)
	pool := extsim.NewAMMSim(native, titan)
	pool.BindProtocolToken(dragon)
	return &engineFixture{
		clock: clock, native: native, titan: titan, dragon: dragon,
		pool: pool, vault: staking.NewVault(), custody: custody,
		keeper: chain.AddressOf("test:keeper"),
	}
}

// newBuyEngine builds a vault-routed engine targeting the staking
// asset, with a 1:1 pool price and a funded pool.
func (f *engineFixture) newBuyEngine(cfg buyback.Config) *buyback.Engine {
	addr := chain.AddressOf("test:buy-engine")
	f.pool.SetPrice(chain.ZeroAddress, f.titan.Address(), token.PriceScale)
	f.titan.Fund(f.pool.Addr(), uint256.NewInt(0).SetAllOne())
	sink := buyback.NewVaultSink(f.custody, f.vault)
	return buyback.NewEngine("buy", addr, cfg, f.clock, f.native, f.pool, f.titan.Address(), sink)
}

func smallConfig() buyback.Config {
	cfg := buyback.DefaultConfig()
	cfg.CapPerSwap = uint256.NewInt(1_000_000)
	return cfg
}

// ============================================================================
// Test: trigger
// ============================================================================

func TestEngine_TriggerSplitsFeeAndConverts(t *testing.T) {
	f := newEngineFixture()
	eng := f.newBuyEngine(smallConfig())
	f.native.Credit(eng.Addr(), uint256.NewInt(10_000))

	res, err := eng.Trigger(chain.KeeperCall(f.keeper))
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !res.AmountIn.Eq(uint256.NewInt(10_000)) {
		t.Errorf("amount in = %s, want 10000", res.AmountIn.Dec())
	}
	// 0.5% keeper incentive off the input, remainder swapped 1:1.
	if !res.IncentiveFee.Eq(uint256.NewInt(50)) {
		t.Errorf("incentive = %s, want 50", res.IncentiveFee.Dec())
	}
	if !res.AmountOut.Eq(uint256.NewInt(9950)) {
		t.Errorf("amount out = %s, want 9950", res.AmountOut.Dec())
	}
	if got := f.native.BalanceOf(f.keeper); !got.Eq(uint256.NewInt(50)) {
		t.Errorf("keeper native = %s, want 50", got.Dec())
	}
	// The buy sink routes output into the vault, held at custody.
	if got := f.vault.Balance(); !got.Eq(uint256.NewInt(9950)) {
		t.Errorf("vault = %s, want 9950", got.Dec())
	}
	if got := f.titan.BalanceOf(f.custody); !got.Eq(uint256.NewInt(9950)) {
		t.Errorf("custody asset = %s, want 9950", got.Dec())
	}
	// Used totals are net of the incentive: only what reached the pool.
	if got := eng.TotalSourceUsed(); !got.Eq(uint256.NewInt(9950)) {
		t.Errorf("total source used = %s, want 9950", got.Dec())
	}
	if got := eng.TotalTargetAcquired(); !got.Eq(uint256.NewInt(9950)) {
		t.Errorf("total target acquired = %s, want 9950", got.Dec())
	}
}

func TestEngine_NextTriggerQuote(t *testing.T) {
	f := newEngineFixture()
	eng := f.newBuyEngine(smallConfig())

	if !eng.NextTriggerAmount().IsZero() {
		t.Errorf("empty engine next trigger = %s, want 0", eng.NextTriggerAmount().Dec())
	}

	f.native.Credit(eng.Addr(), uint256.NewInt(2_000_000))
	if !eng.NextTriggerAmount().Eq(uint256.NewInt(1_000_000)) {
		t.Errorf("next trigger amount = %s, want cap 1000000", eng.NextTriggerAmount().Dec())
	}
	if !eng.NextTriggerIncentive().Eq(uint256.NewInt(5_000)) {
		t.Errorf("next trigger incentive = %s, want 5000", eng.NextTriggerIncentive().Dec())
	}
}

func TestEngine_TriggerCapsInput(t *testing.T) {
	f := newEngineFixture()
	cfg := smallConfig()
	cfg.CapPerSwap = uint256.NewInt(1000)
	eng := f.newBuyEngine(cfg)
	f.native.Credit(eng.Addr(), uint256.NewInt(10_000))

	res, err := eng.Trigger(chain.KeeperCall(f.keeper))
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !res.AmountIn.Eq(uint256.NewInt(1000)) {
		t.Errorf("amount in = %s, want cap 1000", res.AmountIn.Dec())
	}
	if got := f.native.BalanceOf(eng.Addr()); !got.Eq(uint256.NewInt(9000)) {
		t.Errorf("engine retains %s, want 9000", got.Dec())
	}
}

func TestEngine_TriggerCooldown(t *testing.T) {
	f := newEngineFixture()
	eng := f.newBuyEngine(smallConfig())
	f.native.Credit(eng.Addr(), uint256.NewInt(10_000_000))

	if _, err := eng.Trigger(chain.KeeperCall(f.keeper)); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	_, err := eng.Trigger(chain.KeeperCall(f.keeper))
	if !errors.Is(err, chain.ErrCooldownActive) {
		t.Fatalf("got %v, want ErrCooldownActive", err)
	}

	f.clock.Advance(15 * time.Minute)
	if _, err := eng.Trigger(chain.KeeperCall(f.keeper)); err != nil {
		t.Errorf("trigger after interval: %v", err)
	}
}

func TestEngine_TriggerValidation(t *testing.T) {
	f := newEngineFixture()
	eng := f.newBuyEngine(smallConfig())

	_, err := eng.Trigger(chain.KeeperCall(chain.ZeroAddress))
	if !errors.Is(err, buyback.ErrInvalidDestinationAddress) {
		t.Errorf("zero caller: got %v, want ErrInvalidDestinationAddress", err)
	}
	_, err = eng.Trigger(chain.NestedCall(f.keeper))
	if !errors.Is(err, chain.ErrInvalidCaller) {
		t.Errorf("nested call: got %v, want ErrInvalidCaller", err)
	}
	_, err = eng.Trigger(chain.KeeperCall(f.keeper))
	if !errors.Is(err, buyback.ErrNoFundsToConvert) {
		t.Errorf("empty engine: got %v, want ErrNoFundsToConvert", err)
	}
}

// ============================================================================
// Test: burn sink
// ============================================================================

func TestEngine_BurnSinkDestroysOutput(t *testing.T) {
	f := newEngineFixture()
	burnAddr := chain.AddressOf("test:burn-engine")
	sink := buyback.NewBurnSink(burnAddr, f.dragon)
	f.pool.SetPrice(chain.ZeroAddress, f.dragon.Address(), token.PriceScale)
	if err := f.dragon.Mint(f.custody, f.pool.Addr(), uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
	eng := buyback.NewEngine("buyburn", burnAddr, smallConfig(), f.clock, f.native, f.pool, f.dragon.Address(), sink)
	f.native.Credit(eng.Addr(), uint256.NewInt(10_000))

	supplyBefore := f.dragon.TotalSupply()
	res, err := eng.Trigger(chain.KeeperCall(f.keeper))
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !res.AmountOut.Eq(uint256.NewInt(9950)) {
		t.Fatalf("amount out = %s, want 9950", res.AmountOut.Dec())
	}
	supplyAfter := f.dragon.TotalSupply()
	burned := new(uint256.Int).Sub(supplyBefore, supplyAfter)
	if !burned.Eq(uint256.NewInt(9950)) {
		t.Errorf("supply shrank by %s, want 9950", burned.Dec())
	}
	if got := sink.TotalBurned(); !got.Eq(uint256.NewInt(9950)) {
		t.Errorf("total burned = %s, want 9950", got.Dec())
	}
	if got := f.dragon.BalanceOf(burnAddr); !got.IsZero() {
		t.Errorf("burn engine should hold nothing, has %s", got.Dec())
	}
}

// ============================================================================
// Test: parameter setters
// ============================================================================

func TestEngine_SetterRanges(t *testing.T) {
	f := newEngineFixture()
	eng := f.newBuyEngine(smallConfig())

	if err := eng.SetSlippageBps(499); err == nil || err.Error() != "5-15% only" {
		t.Errorf("slippage 499: got %v, want %q", err, "5-15% only")
	}
	if err := eng.SetSlippageBps(1501); err == nil || err.Error() != "5-15% only" {
		t.Errorf("slippage 1501: got %v, want %q", err, "5-15% only")
	}
	if err := eng.SetSlippageBps(1500); err != nil {
		t.Errorf("slippage 1500: %v", err)
	}

	if err := eng.SetInterval(59 * time.Second); err == nil || err.Error() != "1m-12h only" {
		t.Errorf("interval 59s: got %v, want %q", err, "1m-12h only")
	}
	if err := eng.SetInterval(13 * time.Hour); err == nil || err.Error() != "1m-12h only" {
		t.Errorf("interval 13h: got %v, want %q", err, "1m-12h only")
	}
	if err := eng.SetInterval(time.Minute); err != nil {
		t.Errorf("interval 1m: %v", err)
	}

	if err := eng.SetTwaWindow(4 * time.Minute); err == nil || err.Error() != "5m-1h only" {
		t.Errorf("twa 4m: got %v, want %q", err, "5m-1h only")
	}
	if err := eng.SetTwaWindow(2 * time.Hour); err == nil || err.Error() != "5m-1h only" {
		t.Errorf("twa 2h: got %v, want %q", err, "5m-1h only")
	}
	if err := eng.SetTwaWindow(time.Hour); err != nil {
		t.Errorf("twa 1h: %v", err)
	}

	if err := eng.SetCapPerSwap(uint256.NewInt(0)); err == nil {
		t.Error("zero cap should be rejected")
	}
}

func TestEngine_SetIntervalAffectsNextTrigger(t *testing.T) {
	f := newEngineFixture()
	eng := f.newBuyEngine(smallConfig())
	f.native.Credit(eng.Addr(), uint256.NewInt(10_000_000))

	if err := eng.SetInterval(time.Minute); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if _, err := eng.Trigger(chain.KeeperCall(f.keeper)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := eng.Trigger(chain.KeeperCall(f.keeper)); err != nil {
		t.Errorf("trigger after shortened interval: %v", err)
	}
}

// ============================================================================
// Test: liquidity manager
// ============================================================================

type stubMinter struct {
	dragon *token.Dragon
	minter chain.Address
	used   bool
}

func (m *stubMinter) MintInitialLiquidity(caller, to chain.Address, amount *uint256.Int) error {
	if m.used {
		return errors.New("already minted")
	}
	m.used = true
	return m.dragon.Mint(m.minter, to, amount)
}

func newLiquidityFixture(t *testing.T) (*engineFixture, *buyback.LiquidityManager, chain.Address) {
	t.Helper()
	f := newEngineFixture()
	owner := chain.AddressOf("test:owner")
	burnAddr := chain.AddressOf("test:burn-engine")
	sink := buyback.NewBurnSink(burnAddr, f.dragon)
	minter := &stubMinter{dragon: f.dragon, minter: f.custody}
	mgr := buyback.NewLiquidityManager(burnAddr, owner, f.custody, f.titan, f.dragon, f.pool, minter, sink, f.vault)
	return f, mgr, owner
}

func TestLiquidityManager_CreateInitialLiquidity(t *testing.T) {
	f, mgr, owner := newLiquidityFixture(t)
	amount := uint256.NewInt(1_000_000)
	f.titan.Fund(owner, amount)
	f.titan.Approve(owner, chain.AddressOf("test:burn-engine"), amount)

	id, err := mgr.CreateInitialLiquidity(chain.KeeperCall(owner), amount)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 1 {
		t.Errorf("position id = %d, want 1", id)
	}
	if got := f.titan.BalanceOf(f.pool.Addr()); !got.Eq(amount) {
		t.Errorf("pool asset = %s, want %s", got.Dec(), amount.Dec())
	}
	if got := f.dragon.BalanceOf(f.pool.Addr()); !got.Eq(amount) {
		t.Errorf("pool token = %s, want %s", got.Dec(), amount.Dec())
	}

	_, err = mgr.CreateInitialLiquidity(chain.KeeperCall(owner), amount)
	if err == nil || err.Error() != "already minted" {
		t.Errorf("second create: got %v, want %q", err, "already minted")
	}
}

func TestLiquidityManager_CreateValidation(t *testing.T) {
	f, mgr, owner := newLiquidityFixture(t)
	amount := uint256.NewInt(1000)

	_, err := mgr.CreateInitialLiquidity(chain.KeeperCall(chain.AddressOf("test:mallory")), amount)
	if !errors.Is(err, chain.ErrNotOwner) {
		t.Errorf("non-owner: got %v, want ErrNotOwner", err)
	}

	_, err = mgr.CreateInitialLiquidity(chain.KeeperCall(owner), amount)
	if err == nil || err.Error() != "allowance too low" {
		t.Errorf("no allowance: got %v, want %q", err, "allowance too low")
	}

	f.titan.Approve(owner, chain.AddressOf("test:burn-engine"), amount)
	_, err = mgr.CreateInitialLiquidity(chain.KeeperCall(owner), amount)
	if err == nil || err.Error() != "balance too low" {
		t.Errorf("no balance: got %v, want %q", err, "balance too low")
	}
}

func TestLiquidityManager_CollectFees(t *testing.T) {
	f, mgr, owner := newLiquidityFixture(t)

	if _, _, err := mgr.CollectFees(); !errors.Is(err, buyback.ErrNoLiquidity) {
		t.Fatalf("collect before create: got %v, want ErrNoLiquidity", err)
	}

	amount := uint256.NewInt(1_000_000)
	f.titan.Fund(owner, amount)
	f.titan.Approve(owner, chain.AddressOf("test:burn-engine"), amount)
	id, err := mgr.CreateInitialLiquidity(chain.KeeperCall(owner), amount)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Accrue one round of trading fees on the position; the sim pays
	// them out of the pool's own holdings.
	if err := f.dragon.Mint(f.custody, f.pool.Addr(), uint256.NewInt(300)); err != nil {
		t.Fatalf("fund pool fees: %v", err)
	}
	f.titan.Fund(f.pool.Addr(), uint256.NewInt(200))
	f.pool.SetAccruedFees(id, uint256.NewInt(300), uint256.NewInt(200))

	supplyBefore := f.dragon.TotalSupply()
	dragonFees, titanFees, err := mgr.CollectFees()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !dragonFees.Eq(uint256.NewInt(300)) || !titanFees.Eq(uint256.NewInt(200)) {
		t.Errorf("fees = %s/%s, want 300/200", dragonFees.Dec(), titanFees.Dec())
	}
	// Protocol-token fees are burned in place.
	burned := new(uint256.Int).Sub(supplyBefore, f.dragon.TotalSupply())
	if !burned.Eq(uint256.NewInt(300)) {
		t.Errorf("supply shrank by %s, want 300", burned.Dec())
	}
	// Asset fees feed the vault via custody.
	if got := f.vault.Balance(); !got.Eq(uint256.NewInt(200)) {
		t.Errorf("vault = %s, want 200", got.Dec())
	}
	if got := f.titan.BalanceOf(f.custody); !got.Eq(uint256.NewInt(200)) {
		t.Errorf("custody asset = %s, want 200", got.Dec())
	}
}
