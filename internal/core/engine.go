package core

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/DragonX2024888/DragonX/internal/buyback"
	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/distributor"
	"github.com/DragonX2024888/DragonX/internal/event"
	"github.com/DragonX2024888/DragonX/internal/mint"
	"github.com/DragonX2024888/DragonX/internal/observability"
	"github.com/DragonX2024888/DragonX/internal/staking"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var errUnknownInstance = errors.New("invalid ID")

// Output carries one committed event downstream.
type Output struct {
	Envelope *event.Envelope
}

// Engine is the single entry point into the tokenomics state. All
// calls are serialized; each one either commits fully, emitting its
// events, or is rolled back to the pre-call snapshot with no trace
// beyond the returned error.
type Engine struct {
	mu sync.Mutex

	clock   clockwork.Clock
	log     zerolog.Logger
	metrics *observability.Metrics

	owner   chain.Address
	custody chain.Address

	native    *chain.NativeLedger
	titan     token.StakingToken
	pool      token.LiquidityPool
	dragon    *token.Dragon
	ladder    *mint.Ladder
	genesis   *mint.Allocator
	vault     *staking.Vault
	registry  *staking.Registry
	dist      *distributor.Distributor
	buy       *buyback.Engine
	burn      *buyback.Engine
	burnSink  *buyback.BurnSink
	liquidity *buyback.LiquidityManager

	// stores is every checkpointable piece of state, snapshotted
	// before each call.
	stores []chain.Checkpointer

	sequence int64

	persistChan chan<- Output
	publishChan chan<- Output
}

// execute wraps one entry point: snapshot, run, and either emit the
// produced events or restore everything.
func (e *Engine) execute(entry string, fn func() ([]event.Event, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	snaps := chain.CheckpointAll(e.stores)

	events, err := fn()
	if err != nil {
		chain.RestoreAll(e.stores, snaps)
		if e.metrics != nil {
			e.metrics.CallsRejected.WithLabelValues(entry, rejectReason(err)).Inc()
		}
		e.log.Debug().Str("entry_point", entry).Err(err).Msg("call rejected")
		return err
	}

	now := e.clock.Now()
	for _, evt := range events {
		e.sequence++
		envelope := &event.Envelope{
			Sequence:  e.sequence,
			ID:        uuid.New(),
			Type:      evt.EventType(),
			Timestamp: now,
			Payload:   evt,
		}
		out := Output{Envelope: envelope}

		// Persistence backpressures the engine; the event log loses
		// nothing. Publishing drops on a full channel, subscribers
		// catch up from the log.
		if e.persistChan != nil {
			select {
			case e.persistChan <- out:
			default:
				if e.metrics != nil {
					e.metrics.PersistBackpressure.Inc()
				}
				e.persistChan <- out
			}
		}
		if e.publishChan != nil {
			select {
			case e.publishChan <- out:
			default:
				if e.metrics != nil {
					e.metrics.PublishDrops.Inc()
				}
			}
		}
		e.log.Info().
			Int64("sequence", envelope.Sequence).
			Str("type", envelope.Type.String()).
			Msg("event committed")
	}

	if e.metrics != nil {
		e.metrics.CallsApplied.WithLabelValues(entry).Inc()
		e.metrics.CallDuration.WithLabelValues(entry).Observe(time.Since(start).Seconds())
		e.metrics.Sequence.Set(float64(e.sequence))
		e.updateGauges()
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, chain.ErrInvalidCaller):
		return "invalid_caller"
	case errors.Is(err, chain.ErrCooldownActive):
		return "cooldown"
	case errors.Is(err, chain.ErrNotOwner):
		return "not_owner"
	default:
		return "validation"
	}
}

func (e *Engine) updateGauges() {
	e.metrics.TokenTotalSupply.Set(toFloat(e.dragon.TotalSupply()))
	e.metrics.TokenTotalBurned.Set(toFloat(e.burnSink.TotalBurned()))
	e.metrics.VaultBalance.Set(toFloat(e.vault.Balance()))
	e.metrics.TotalStaked.Set(toFloat(e.registry.TotalStaked()))
	e.metrics.TotalUnstaked.Set(toFloat(e.registry.TotalUnstaked()))
	e.metrics.StakeAccounts.Set(float64(len(e.registry.Accounts())))
	open := 0
	for _, acct := range e.registry.Accounts() {
		open += acct.OpenCount() - acct.ClosedCount()
	}
	e.metrics.OpenStakePositions.Set(float64(open))
}

// toFloat is lossy above 2^53. Gauges are monitoring aids, the exact
// values live in the event log.
func toFloat(u *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(u.ToBig()).Float64()
	return f
}

// CreateInitialLiquidity seeds the pool. Owner-only, once.
func (e *Engine) CreateInitialLiquidity(caller chain.Address, amount *uint256.Int) (uint64, error) {
	var positionID uint64
	err := e.execute("create_initial_liquidity", func() ([]event.Event, error) {
		id, err := e.liquidity.CreateInitialLiquidity(chain.KeeperCall(caller), amount)
		if err != nil {
			return nil, err
		}
		positionID = id
		return []event.Event{&event.InitialLiquidityCreated{
			Caller:     caller,
			Amount:     amount.Dec(),
			PositionID: id,
		}}, nil
	})
	return positionID, err
}

// Mint converts caller's staking assets into protocol tokens at the
// current ladder ratio.
func (e *Engine) Mint(caller chain.Address, amount *uint256.Int) (mint.Result, error) {
	var res mint.Result
	err := e.execute("mint", func() ([]event.Event, error) {
		r, err := e.ladder.Mint(caller, amount)
		if err != nil {
			return nil, err
		}
		res = r
		return []event.Event{&event.Minted{
			Caller:       caller,
			AmountIn:     r.Amount.Dec(),
			RatioBps:     uint64(r.RatioBps),
			Minted:       r.Minted.Dec(),
			GenesisToken: r.GenesisDragonShare.Dec(),
			GenesisAsset: r.GenesisAssetShare.Dec(),
		}}, nil
	})
	return res, err
}

// ClaimGenesis releases the accumulated genesis allocation of one
// token to the owner. The zero address selects native currency.
func (e *Engine) ClaimGenesis(caller, selector chain.Address) (*uint256.Int, error) {
	var claimed *uint256.Int
	err := e.execute("claim_genesis", func() ([]event.Event, error) {
		amount, err := e.genesis.Claim(caller, selector)
		if err != nil {
			return nil, err
		}
		claimed = amount
		return []event.Event{&event.GenesisClaimed{
			Caller: caller,
			Token:  selector,
			Amount: amount.Dec(),
		}}, nil
	})
	return claimed, err
}

// Claim pulls all claimable staking revenue and splits it.
func (e *Engine) Claim(caller chain.Address) (distributor.Split, error) {
	var split distributor.Split
	err := e.execute("claim", func() ([]event.Event, error) {
		s, err := e.dist.Claim(chain.KeeperCall(caller))
		if err != nil {
			return nil, err
		}
		split = s
		return []event.Event{&event.Claimed{
			Caller:       caller,
			Total:        s.Total.Dec(),
			GenesisShare: s.GenesisShare.Dec(),
			BuyBurnShare: s.BuyBurnShare.Dec(),
			IncentiveFee: s.IncentiveFee.Dec(),
			BuyShare:     s.BuyShare.Dec(),
		}}, nil
	})
	return split, err
}

// TriggerBuy converts accumulated revenue into staking assets for the
// vault.
func (e *Engine) TriggerBuy(caller chain.Address) (buyback.Result, error) {
	var res buyback.Result
	err := e.execute("trigger_buy", func() ([]event.Event, error) {
		r, err := e.buy.Trigger(chain.KeeperCall(caller))
		if err != nil {
			return nil, err
		}
		res = r
		return []event.Event{&event.TargetBought{
			Caller:       caller,
			AmountIn:     r.AmountIn.Dec(),
			AmountOut:    r.AmountOut.Dec(),
			IncentiveFee: r.IncentiveFee.Dec(),
		}}, nil
	})
	return res, err
}

// TriggerBuyAndBurn converts accumulated revenue into protocol tokens
// and destroys them.
func (e *Engine) TriggerBuyAndBurn(caller chain.Address) (buyback.Result, error) {
	var res buyback.Result
	err := e.execute("trigger_buy_and_burn", func() ([]event.Event, error) {
		r, err := e.burn.Trigger(chain.KeeperCall(caller))
		if err != nil {
			return nil, err
		}
		res = r
		return []event.Event{&event.BoughtAndBurned{
			Caller:       caller,
			AmountIn:     r.AmountIn.Dec(),
			Burned:       r.AmountOut.Dec(),
			IncentiveFee: r.IncentiveFee.Dec(),
		}}, nil
	})
	return res, err
}

// CollectFees withdraws the protocol position's trading fees:
// protocol tokens are burned, staking assets feed the vault.
func (e *Engine) CollectFees(caller chain.Address) error {
	return e.execute("collect_fees", func() ([]event.Event, error) {
		dragonFees, titanFees, err := e.liquidity.CollectFees()
		if err != nil {
			return nil, err
		}
		if dragonFees.IsZero() && titanFees.IsZero() {
			return nil, nil
		}
		return []event.Event{&event.CollectedFees{
			Caller:      caller,
			TokenBurned: dragonFees.Dec(),
			AssetAmount: titanFees.Dec(),
		}}, nil
	})
}

// Stake locks the vault into the active stake account.
func (e *Engine) Stake(caller chain.Address) error {
	return e.execute("stake", func() ([]event.Event, error) {
		acct, amount, err := e.registry.Stake(chain.KeeperCall(caller))
		if err != nil {
			return nil, err
		}
		return []event.Event{&event.StakeStarted{
			Caller:   caller,
			Instance: acct.Addr(),
			Amount:   amount.Dec(),
		}}, nil
	})
}

// DeployNewStakeInstance rotates to a fresh stake account once the
// active one is full. Permissionless.
func (e *Engine) DeployNewStakeInstance(caller chain.Address) (chain.Address, error) {
	var deployed chain.Address
	err := e.execute("deploy_new_stake_instance", func() ([]event.Event, error) {
		acct, err := e.registry.DeployNewInstance()
		if err != nil {
			return nil, err
		}
		deployed = acct.Addr()
		return []event.Event{&event.StakeAccountDeployed{
			Instance: acct.Addr(),
			Index:    len(e.registry.Accounts()) - 1,
		}}, nil
	})
	return deployed, err
}

// EndStakeAfterMaturity closes one matured position. Permissionless,
// succeeds exactly once per position.
func (e *Engine) EndStakeAfterMaturity(caller, instance chain.Address, id uint64) (*uint256.Int, error) {
	var proceeds *uint256.Int
	err := e.execute("end_stake", func() ([]event.Event, error) {
		acct := e.registry.AccountByAddr(instance)
		if acct == nil {
			return nil, errUnknownInstance
		}
		p, err := acct.EndStakeAfterMaturity(id)
		if err != nil {
			return nil, err
		}
		proceeds = p
		return []event.Event{&event.StakeEnded{
			Caller:   caller,
			Instance: instance,
			StakeID:  id,
			Proceeds: p.Dec(),
		}}, nil
	})
	return proceeds, err
}

// RecoverAssets sweeps misrouted staking assets from a stake account
// back into the vault. Permissionless, no-op when there is nothing.
func (e *Engine) RecoverAssets(caller, instance chain.Address) (*uint256.Int, error) {
	var swept *uint256.Int
	err := e.execute("recover_assets", func() ([]event.Event, error) {
		acct := e.registry.AccountByAddr(instance)
		if acct == nil {
			return nil, errUnknownInstance
		}
		amount, err := acct.RecoverAssets()
		if err != nil {
			return nil, err
		}
		swept = amount
		if amount.IsZero() {
			return nil, nil
		}
		return []event.Event{&event.AssetsRecovered{
			Caller:   caller,
			Instance: instance,
			Amount:   amount.Dec(),
		}}, nil
	})
	return swept, err
}

func (e *Engine) requireOwner(caller chain.Address) error {
	if caller != e.owner {
		return chain.ErrNotOwner
	}
	return nil
}

// SetBuyCapPerSwap adjusts the buy engine's per-trigger spend bound.
func (e *Engine) SetBuyCapPerSwap(caller chain.Address, cap *uint256.Int) error {
	return e.execute("set_buy_cap", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.buy.SetCapPerSwap(cap)
	})
}

// SetBuySlippageBps adjusts the buy engine's slippage tolerance.
func (e *Engine) SetBuySlippageBps(caller chain.Address, bps uint16) error {
	return e.execute("set_buy_slippage", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.buy.SetSlippageBps(bps)
	})
}

// SetBuyInterval adjusts the buy engine's trigger spacing.
func (e *Engine) SetBuyInterval(caller chain.Address, d time.Duration) error {
	return e.execute("set_buy_interval", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.buy.SetInterval(d)
	})
}

// SetBuyTwaWindow adjusts the buy engine's price-averaging window.
func (e *Engine) SetBuyTwaWindow(caller chain.Address, d time.Duration) error {
	return e.execute("set_buy_twa_window", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.buy.SetTwaWindow(d)
	})
}

// SetBurnCapPerSwap adjusts the burn engine's per-trigger spend bound.
func (e *Engine) SetBurnCapPerSwap(caller chain.Address, cap *uint256.Int) error {
	return e.execute("set_burn_cap", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.burn.SetCapPerSwap(cap)
	})
}

// SetBurnSlippageBps adjusts the burn engine's slippage tolerance.
func (e *Engine) SetBurnSlippageBps(caller chain.Address, bps uint16) error {
	return e.execute("set_burn_slippage", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.burn.SetSlippageBps(bps)
	})
}

// SetBurnInterval adjusts the burn engine's trigger spacing.
func (e *Engine) SetBurnInterval(caller chain.Address, d time.Duration) error {
	return e.execute("set_burn_interval", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.burn.SetInterval(d)
	})
}

// SetBurnTwaWindow adjusts the burn engine's price-averaging window.
func (e *Engine) SetBurnTwaWindow(caller chain.Address, d time.Duration) error {
	return e.execute("set_burn_twa_window", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.burn.SetTwaWindow(d)
	})
}

// SetStakeMaxOpen adjusts how many positions one account may open.
func (e *Engine) SetStakeMaxOpen(caller chain.Address, n int) error {
	return e.execute("set_stake_max_open", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.registry.SetMaxOpenPerAccount(n)
	})
}

// SetStakeImmediateThreshold adjusts the cooldown-bypass balance.
func (e *Engine) SetStakeImmediateThreshold(caller chain.Address, threshold *uint256.Int) error {
	return e.execute("set_stake_immediate_threshold", func() ([]event.Event, error) {
		if err := e.requireOwner(caller); err != nil {
			return nil, err
		}
		return nil, e.registry.SetImmediateThreshold(threshold)
	})
}
