package core

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/DragonX2024888/DragonX/internal/buyback"
	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/distributor"
	"github.com/DragonX2024888/DragonX/internal/mint"
	"github.com/DragonX2024888/DragonX/internal/observability"
	"github.com/DragonX2024888/DragonX/internal/staking"
	"github.com/DragonX2024888/DragonX/internal/token"
)

// Component addresses are fixed, derived from stable labels, so every
// deployment and every test sees the same topology.
var (
	CustodyAddr    = chain.AddressOf("dragonx:custody")
	TokenAddr      = chain.AddressOf("dragonx:token")
	BuyEngineAddr  = chain.AddressOf("dragonx:buy")
	BurnEngineAddr = chain.AddressOf("dragonx:buyburn")
)

// Config assembles the tunables of every component.
type Config struct {
	Owner chain.Address

	Window   mint.WindowConfig
	Registry staking.RegistryConfig
	Buy      buyback.Config
	Burn     buyback.Config
	Split    distributor.Config
}

// DefaultConfig is the production parameter set with the mint window
// opening at begin.
func DefaultConfig(owner chain.Address, begin time.Time) Config {
	return Config{
		Owner:    owner,
		Window:   mint.DefaultWindowConfig(begin),
		Registry: staking.DefaultRegistryConfig(),
		Buy:      buyback.DefaultConfig(),
		Burn:     buyback.DefaultConfig(),
		Split:    distributor.DefaultConfig(),
	}
}

// Deps are the external collaborators and infrastructure handles.
type Deps struct {
	Clock   clockwork.Clock
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	Native *chain.NativeLedger
	Titan  token.StakingToken
	Pool   token.LiquidityPool

	// PersistChan and PublishChan receive committed events. Either
	// may be nil; persistence backpressures, publishing drops.
	PersistChan chan<- Output
	PublishChan chan<- Output

	// StartSequence resumes event numbering after a restart; the
	// first emitted event carries StartSequence+1.
	StartSequence int64
}

// Build wires the full component graph. Construction is two-phase:
// components are created with fixed addresses first, then the cyclic
// edges (registry -> distributor) are closed, then the native receive
// guards are installed.
func Build(cfg Config, deps Deps) (*Engine, error) {
	if cfg.Owner.IsZero() {
		return nil, errors.New("owner address required")
	}
	if deps.Clock == nil || deps.Native == nil || deps.Titan == nil || deps.Pool == nil {
		return nil, errors.New("clock, native ledger, staking token and pool are required")
	}

	dragon := token.NewDragon(TokenAddr, CustodyAddr, BurnEngineAddr)
	vault := staking.NewVault()
	ladder := mint.NewLadder(cfg.Window, deps.Clock, deps.Titan, dragon, CustodyAddr, vault, BurnEngineAddr)
	genesis := mint.NewAllocator(cfg.Owner, CustodyAddr, dragon, deps.Titan, deps.Native, vault)

	// Stake accounts reject all direct native transfers; revenue
	// reaches them through protocol payouts only.
	registry, err := staking.NewRegistry(
		cfg.Registry, CustodyAddr, deps.Clock, deps.Titan, deps.Native, vault,
		func(sender chain.Address) bool { return false },
	)
	if err != nil {
		return nil, err
	}

	burnSink := buyback.NewBurnSink(BurnEngineAddr, dragon)
	buySink := buyback.NewVaultSink(CustodyAddr, vault)
	buyEngine := buyback.NewEngine("buy", BuyEngineAddr, cfg.Buy, deps.Clock, deps.Native, deps.Pool, deps.Titan.Address(), buySink)
	burnEngine := buyback.NewEngine("buyburn", BurnEngineAddr, cfg.Burn, deps.Clock, deps.Native, deps.Pool, TokenAddr, burnSink)
	liquidity := buyback.NewLiquidityManager(
		BurnEngineAddr, cfg.Owner, CustodyAddr,
		deps.Titan, dragon, deps.Pool, ladder, burnSink, vault,
	)

	dist := distributor.New(cfg.Split, CustodyAddr, deps.Titan, deps.Native, registry, BuyEngineAddr, BurnEngineAddr)
	registry.SetRevenueSink(dist)

	// Native currency moves along fixed edges: stake accounts and
	// nothing else pay custody, only custody funds the engines.
	deps.Native.SetReceiveGuard(CustodyAddr, func(sender chain.Address) bool {
		return registry.AccountByAddr(sender) != nil
	})
	engineGuard := func(sender chain.Address) bool { return sender == CustodyAddr }
	deps.Native.SetReceiveGuard(BuyEngineAddr, engineGuard)
	deps.Native.SetReceiveGuard(BurnEngineAddr, engineGuard)

	eng := &Engine{
		clock:       deps.Clock,
		log:         deps.Logger,
		metrics:     deps.Metrics,
		owner:       cfg.Owner,
		custody:     CustodyAddr,
		native:      deps.Native,
		titan:       deps.Titan,
		pool:        deps.Pool,
		dragon:      dragon,
		ladder:      ladder,
		genesis:     genesis,
		vault:       vault,
		registry:    registry,
		dist:        dist,
		buy:         buyEngine,
		burn:        burnEngine,
		burnSink:    burnSink,
		liquidity:   liquidity,
		sequence:    deps.StartSequence,
		persistChan: deps.PersistChan,
		publishChan: deps.PublishChan,
	}

	eng.stores = []chain.Checkpointer{
		deps.Native, dragon, vault, registry, ladder,
		buyEngine, burnEngine, burnSink, liquidity, dist,
	}
	// External collaborators that can roll back join the snapshot set.
	if cp, ok := deps.Titan.(chain.Checkpointer); ok {
		eng.stores = append(eng.stores, cp)
	}
	if cp, ok := deps.Pool.(chain.Checkpointer); ok {
		eng.stores = append(eng.stores, cp)
	}
	return eng, nil
}
