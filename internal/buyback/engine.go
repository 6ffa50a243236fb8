package buyback

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
	ErrNoFundsToConvert          = errors.New("NoFundsToConvert")
	ErrInvalidDestinationAddress = errors.New("InvalidDestinationAddress")

	errSlippageRange = errors.New("5-15% only")
	errIntervalRange = errors.New("1m-12h only")
	errTwaRange      = errors.New("5m-1h only")
)

// Sink decides what happens to swap output: the buy engine routes it
// into the staking vault, the burn engine destroys it.
type Sink interface {
	// Recipient is where the pool delivers the swap output.
	Recipient() chain.Address
	Apply(out *uint256.Int) error
}

// Config holds the tunable keeper parameters of one engine.
type Config struct {
	// CapPerSwap bounds the source amount spent per trigger.
	CapPerSwap *uint256.Int
	// Interval is the minimum spacing between triggers, 1m to 12h.
	Interval time.Duration
	// SlippageBps is the tolerated deviation below the TWA-implied
	// output, 500 to 1500.
	SlippageBps uint16
	// TwaWindow is the averaging window for the slippage floor,
	// 5m to 1h.
	TwaWindow time.Duration
	// IncentiveFeeBps is the keeper reward taken from the input.
	IncentiveFeeBps uint16
}

// DefaultConfig mirrors the production parameters.
func DefaultConfig() Config {
	return Config{
		CapPerSwap:      uint256.NewInt(1e18),
		Interval:        15 * time.Minute,
		SlippageBps:     500,
		TwaWindow:       15 * time.Minute,
		IncentiveFeeBps: 50,
	}
}

// Engine converts its accumulated native balance into a target token
// through the pool, one capped swap per interval, with a keeper
// incentive paid from the input and a TWA-derived slippage floor.
type Engine struct {
	name   string
	addr   chain.Address
	cfg    Config
	clock  clockwork.Clock
	native *chain.NativeLedger
	pool   token.LiquidityPool
	target chain.Address
	sink   Sink

	lastCall            time.Time
	totalSourceUsed     *uint256.Int
	totalTargetAcquired *uint256.Int
}

func NewEngine(
	name string,
	addr chain.Address,
	cfg Config,
	clock clockwork.Clock,
	native *chain.NativeLedger,
	pool token.LiquidityPool,
	target chain.Address,
	sink Sink,
) *Engine {
	return &Engine{
		name:                name,
		addr:                addr,
		cfg:                 cfg,
		clock:               clock,
		native:              native,
		pool:                pool,
		target:              target,
		sink:                sink,
		totalSourceUsed:     uint256.NewInt(0),
		totalTargetAcquired: uint256.NewInt(0),
	}
}

func (e *Engine) Addr() chain.Address { return e.addr }
func (e *Engine) Name() string        { return e.name }

// Result summarizes one successful trigger.
type Result struct {
	AmountIn     *uint256.Int
	IncentiveFee *uint256.Int
	AmountOut    *uint256.Int
}

// Trigger runs one conversion. Keeper entry point: top-level callers
// only, at most once per interval.
func (e *Engine) Trigger(call chain.Call) (Result, error) {
	if call.Caller.IsZero() {
		return Result{}, ErrInvalidDestinationAddress
	}
	if !call.TopLevel {
		return Result{}, chain.ErrInvalidCaller
	}
	now := e.clock.Now()
	if !e.lastCall.IsZero() && now.Before(e.lastCall.Add(e.cfg.Interval)) {
		return Result{}, chain.ErrCooldownActive
	}
	balance := e.native.BalanceOf(e.addr)
	if balance.IsZero() {
		return Result{}, ErrNoFundsToConvert
	}
	amountIn := chain.Min(balance, e.cfg.CapPerSwap)

	// The incentive is a cut of the input, so a capped trigger pays a
	// capped reward.
	fee := chain.BpsShare(amountIn, e.cfg.IncentiveFeeBps)
	swapAmount := new(uint256.Int).Sub(amountIn, fee)

	twa, err := e.pool.TwaPrice(chain.ZeroAddress, e.target, e.cfg.TwaWindow)
	if err != nil {
		return Result{}, fmt.Errorf("twa price: %w", err)
	}
	expected := new(uint256.Int).Mul(swapAmount, twa)
	expected.Div(expected, token.PriceScale)
	minOut := chain.BpsShare(expected, chain.Basis-e.cfg.SlippageBps)

	// Cooldown is armed before any funds move.
	e.lastCall = now

	if err := e.native.Transfer(e.addr, call.Caller, fee); err != nil {
		return Result{}, fmt.Errorf("pay incentive: %w", err)
	}
	if err := e.native.Transfer(e.addr, e.pool.Addr(), swapAmount); err != nil {
		return Result{}, fmt.Errorf("fund swap: %w", err)
	}
	out, err := e.pool.SwapExactInput(swapAmount, minOut, chain.ZeroAddress, e.target, e.sink.Recipient())
	if err != nil {
		return Result{}, err
	}
	if err := e.sink.Apply(out); err != nil {
		return Result{}, err
	}

	// Used totals count what actually entered the pool, net of the
	// keeper incentive.
	e.totalSourceUsed.Add(e.totalSourceUsed, swapAmount)
	e.totalTargetAcquired.Add(e.totalTargetAcquired, out)
	return Result{AmountIn: amountIn, IncentiveFee: fee, AmountOut: out}, nil
}

// LastCall reports when the engine last fired.
func (e *Engine) LastCall() time.Time { return e.lastCall }

// NextCall reports the earliest time the next trigger can succeed.
func (e *Engine) NextCall() time.Time {
	if e.lastCall.IsZero() {
		return e.lastCall
	}
	return e.lastCall.Add(e.cfg.Interval)
}

// NextTriggerAmount is the capped source amount the next trigger
// would spend, before the incentive cut.
func (e *Engine) NextTriggerAmount() *uint256.Int {
	return chain.Min(e.native.BalanceOf(e.addr), e.cfg.CapPerSwap)
}

// NextTriggerIncentive quotes the keeper reward for the next trigger.
func (e *Engine) NextTriggerIncentive() *uint256.Int {
	return chain.BpsShare(e.NextTriggerAmount(), e.cfg.IncentiveFeeBps)
}

func (e *Engine) TotalSourceUsed() *uint256.Int     { return e.totalSourceUsed.Clone() }
func (e *Engine) TotalTargetAcquired() *uint256.Int { return e.totalTargetAcquired.Clone() }
func (e *Engine) CapPerSwap() *uint256.Int          { return e.cfg.CapPerSwap.Clone() }
func (e *Engine) Interval() time.Duration           { return e.cfg.Interval }
func (e *Engine) SlippageBps() uint16               { return e.cfg.SlippageBps }
func (e *Engine) TwaWindow() time.Duration          { return e.cfg.TwaWindow }
func (e *Engine) IncentiveFeeBps() uint16           { return e.cfg.IncentiveFeeBps }

// SetCapPerSwap adjusts the per-trigger spend bound.
func (e *Engine) SetCapPerSwap(cap *uint256.Int) error {
	if cap == nil || cap.IsZero() {
		return fmt.Errorf("cap per swap must be positive")
	}
	e.cfg.CapPerSwap = cap.Clone()
	return nil
}

// SetSlippageBps accepts 500 to 1500 basis points.
func (e *Engine) SetSlippageBps(bps uint16) error {
	if bps < 500 || bps > 1500 {
		return errSlippageRange
	}
	e.cfg.SlippageBps = bps
	return nil
}

// SetInterval accepts one minute to twelve hours.
func (e *Engine) SetInterval(d time.Duration) error {
	if d < time.Minute || d > 12*time.Hour {
		return errIntervalRange
	}
	e.cfg.Interval = d
	return nil
}

// SetTwaWindow accepts five minutes to one hour.
func (e *Engine) SetTwaWindow(d time.Duration) error {
	if d < 5*time.Minute || d > time.Hour {
		return errTwaRange
	}
	e.cfg.TwaWindow = d
	return nil
}

type engineSnapshot struct {
	cfg                 Config
	lastCall            time.Time
	totalSourceUsed     *uint256.Int
	totalTargetAcquired *uint256.Int
}

func (e *Engine) Checkpoint() any {
	return engineSnapshot{
		cfg: Config{
			CapPerSwap:      e.cfg.CapPerSwap.Clone(),
			Interval:        e.cfg.Interval,
			SlippageBps:     e.cfg.SlippageBps,
			TwaWindow:       e.cfg.TwaWindow,
			IncentiveFeeBps: e.cfg.IncentiveFeeBps,
		},
		lastCall:            e.lastCall,
		totalSourceUsed:     e.totalSourceUsed.Clone(),
		totalTargetAcquired: e.totalTargetAcquired.Clone(),
	}
}

func (e *Engine) Restore(snapshot any) {
	snap := snapshot.(engineSnapshot)
	e.cfg = snap.cfg
	e.lastCall = snap.lastCall
	e.totalSourceUsed = snap.totalSourceUsed
	e.totalTargetAcquired = snap.totalTargetAcquired
}
