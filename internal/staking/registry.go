package staking

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
	ErrNoTokensToStake          = errors.New("NoTokensToStake")
	ErrNoAdditionalStakes       = errors.New("NoAdditionalStakesAllowed")
	ErrNoNeedForNewInstance     = errors.New("NoNeedForNewInstance")
	errCallbackNotAllowed       = errors.New("not allowed")
	errImmediateThresholdNotSet = errors.New("immediate threshold not configured")
)

// RevenueSink receives native rewards swept from closed stakes into
// the claimable revenue pool. The claim distributor implements it.
type RevenueSink interface {
	CreditPending(amount *uint256.Int)
}

// RegistryConfig holds the staking lifecycle parameters.
type RegistryConfig struct {
	// MaxOpenPerAccount is the per-account ceiling of open positions;
	// once reached, stake() refuses until a fresh account is deployed.
	MaxOpenPerAccount int
	// Cooldown is the minimum spacing between stake openings.
	Cooldown time.Duration
	// ImmediateThreshold bypasses the cooldown when the vault holds at
	// least this much, bounding idle-capital risk.
	ImmediateThreshold *uint256.Int
	// StakeDuration is the duration hint passed to the external
	// protocol per opened position.
	StakeDuration time.Duration
}

// DefaultRegistryConfig mirrors the production parameters: 1000 opens
// per account, weekly cadence, and a 100-billion-token bypass.
func DefaultRegistryConfig() RegistryConfig {
	threshold := new(uint256.Int).Mul(uint256.NewInt(100_000_000_000), uint256.NewInt(1e18))
	return RegistryConfig{
		MaxOpenPerAccount:  1000,
		Cooldown:           7 * 24 * time.Hour,
		ImmediateThreshold: threshold,
		StakeDuration:      28 * 24 * time.Hour,
	}
}

// Registry owns the ordered, append-only list of stake accounts,
// tracks the active one, and rotates to a fresh account once the
// active one is full.
type Registry struct {
	custody chain.Address
	clock   clockwork.Clock
	titan   token.StakingToken
	native  *chain.NativeLedger
	vault   *Vault
	revenue RevenueSink

	cfg         RegistryConfig
	accounts    []*Account
	active      int
	nextStakeTs time.Time

	totalStaked   *uint256.Int
	totalUnstaked *uint256.Int

	// accountGuard authorizes native inflows into freshly deployed
	// accounts; installed on every account at creation.
	accountGuard chain.ReceiveGuard
}

func NewRegistry(
	cfg RegistryConfig,
	custody chain.Address,
	clock clockwork.Clock,
	titan token.StakingToken,
	native *chain.NativeLedger,
	vault *Vault,
	accountGuard chain.ReceiveGuard,
) (*Registry, error) {
	if cfg.ImmediateThreshold == nil {
		return nil, errImmediateThresholdNotSet
	}
	r := &Registry{
		custody:       custody,
		clock:         clock,
		titan:         titan,
		native:        native,
		vault:         vault,
		cfg:           cfg,
		totalStaked:   uint256.NewInt(0),
		totalUnstaked: uint256.NewInt(0),
		accountGuard:  accountGuard,
	}
	// The first account exists from genesis; activeIndex starts at it.
	r.appendAccount()
	return r, nil
}

// SetRevenueSink wires the claim distributor. Part of the two-phase
// build; must be called before the first stake is closed.
func (r *Registry) SetRevenueSink(sink RevenueSink) {
	r.revenue = sink
}

func (r *Registry) appendAccount() *Account {
	acct := &Account{
		addr:     chain.AddressOf(fmt.Sprintf("dragonx:stake:%d", len(r.accounts))),
		registry: r,
		titan:    r.titan,
		native:   r.native,
		closed:   make(map[uint64]bool),
	}
	if r.accountGuard != nil {
		r.native.SetReceiveGuard(acct.addr, r.accountGuard)
	}
	r.accounts = append(r.accounts, acct)
	r.active = len(r.accounts) - 1
	return acct
}

// Stake moves the entire vault into the active account and opens one
// position with it. Keeper entry point, at most one success per
// cooldown window.
func (r *Registry) Stake(call chain.Call) (*Account, *uint256.Int, error) {
	if !call.TopLevel {
		return nil, nil, chain.ErrInvalidCaller
	}
	balance := r.vault.Balance()
	if balance.IsZero() {
		return nil, nil, ErrNoTokensToStake
	}
	now := r.clock.Now()
	if now.Before(r.nextStakeTs) && balance.Lt(r.cfg.ImmediateThreshold) {
		return nil, nil, chain.ErrCooldownActive
	}
	acct := r.accounts[r.active]
	if acct.openCount >= r.cfg.MaxOpenPerAccount {
		return nil, nil, ErrNoAdditionalStakes
	}

	// Guard state first: the cooldown and totals are updated before
	// the external protocol is touched.
	amount := r.vault.DrainAll()
	r.nextStakeTs = now.Add(r.cfg.Cooldown)
	r.totalStaked.Add(r.totalStaked, amount)

	// The protocol's day roll runs before a new position opens, so the
	// stake enters the current accounting day.
	r.titan.AdvanceDailyAccounting()
	if err := r.titan.Transfer(r.custody, acct.addr, amount); err != nil {
		return nil, nil, fmt.Errorf("fund stake account: %w", err)
	}
	if err := acct.openStake(amount, r.cfg.StakeDuration); err != nil {
		return nil, nil, err
	}
	return acct, amount, nil
}

// DeployNewInstance appends a fresh account and makes it active. Only
// allowed once the active account is full.
func (r *Registry) DeployNewInstance() (*Account, error) {
	if r.accounts[r.active].openCount < r.cfg.MaxOpenPerAccount {
		return nil, ErrNoNeedForNewInstance
	}
	return r.appendAccount(), nil
}

// MaturityInfo reports the earliest-opened closeable position, if any.
type MaturityInfo struct {
	Found    bool
	Instance chain.Address
	ID       uint64
}

// StakeReachedMaturity scans accounts in creation order and positions
// in id order for the first matured, still-open position.
func (r *Registry) StakeReachedMaturity() MaturityInfo {
	now := r.clock.Now()
	for _, acct := range r.accounts {
		for id := uint64(1); id <= uint64(acct.openCount); id++ {
			if acct.closed[id] {
				continue
			}
			info, err := r.titan.GetPositionInfo(acct.addr, id)
			if err != nil {
				continue
			}
			if !now.Before(info.MaturityTs) {
				return MaturityInfo{Found: true, Instance: acct.addr, ID: id}
			}
		}
	}
	return MaturityInfo{}
}

// OnStakeEnded is the registry-only callback through which accounts
// return closed-stake proceeds to the vault. Any caller that is not a
// registry-created account is rejected.
func (r *Registry) OnStakeEnded(from chain.Address, amount *uint256.Int) error {
	if r.AccountByAddr(from) == nil {
		return errCallbackNotAllowed
	}
	r.vault.Add(amount)
	r.totalUnstaked.Add(r.totalUnstaked, amount)
	return nil
}

// AccountByAddr resolves a stake-account handle, nil if unknown.
func (r *Registry) AccountByAddr(addr chain.Address) *Account {
	for _, acct := range r.accounts {
		if acct.addr == addr {
			return acct
		}
	}
	return nil
}

// Accounts returns the append-only account list.
func (r *Registry) Accounts() []*Account { return r.accounts }

// Active returns the account new stakes go to.
func (r *Registry) Active() *Account { return r.accounts[r.active] }

func (r *Registry) NextStakeTs() time.Time      { return r.nextStakeTs }
func (r *Registry) TotalStaked() *uint256.Int   { return r.totalStaked.Clone() }
func (r *Registry) TotalUnstaked() *uint256.Int { return r.totalUnstaked.Clone() }

// SetMaxOpenPerAccount adjusts the rotation ceiling.
func (r *Registry) SetMaxOpenPerAccount(n int) error {
	if n <= 0 {
		return fmt.Errorf("max open per account must be positive")
	}
	r.cfg.MaxOpenPerAccount = n
	return nil
}

// SetImmediateThreshold adjusts the cooldown-bypass balance.
func (r *Registry) SetImmediateThreshold(threshold *uint256.Int) error {
	if threshold == nil || threshold.IsZero() {
		return fmt.Errorf("immediate threshold must be positive")
	}
	r.cfg.ImmediateThreshold = threshold.Clone()
	return nil
}

func (r *Registry) MaxOpenPerAccount() int { return r.cfg.MaxOpenPerAccount }

type registrySnapshot struct {
	numAccounts   int
	active        int
	nextStakeTs   time.Time
	totalStaked   *uint256.Int
	totalUnstaked *uint256.Int
	accounts      []any
}

func (r *Registry) Checkpoint() any {
	snap := registrySnapshot{
		numAccounts:   len(r.accounts),
		active:        r.active,
		nextStakeTs:   r.nextStakeTs,
		totalStaked:   r.totalStaked.Clone(),
		totalUnstaked: r.totalUnstaked.Clone(),
	}
	for _, acct := range r.accounts {
		snap.accounts = append(snap.accounts, acct.Checkpoint())
	}
	return snap
}

func (r *Registry) Restore(snapshot any) {
	snap := snapshot.(registrySnapshot)
	// The list is append-only, so rolling back can only shrink it.
	r.accounts = r.accounts[:snap.numAccounts]
	r.active = snap.active
	r.nextStakeTs = snap.nextStakeTs
	r.totalStaked = snap.totalStaked
	r.totalUnstaked = snap.totalUnstaked
	for i, acct := range r.accounts {
		acct.Restore(snap.accounts[i])
	}
}
