package distributor

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/staking"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var ErrNoRevenueClaimable = errors.New("NoRevenueClaimable")

// Config fixes the revenue split in basis points. GenesisShareBps and
// BuyBurnShareBps come off the top, the incentive fee comes off the
// remainder, and what is left funds the buy engine.
type Config struct {
	GenesisShareBps uint16
	BuyBurnShareBps uint16
	IncentiveFeeBps uint16
}

// DefaultConfig mirrors the production split: 8% genesis, 25%
// buy-and-burn, 0.5% keeper incentive.
func DefaultConfig() Config {
	return Config{GenesisShareBps: 800, BuyBurnShareBps: 2500, IncentiveFeeBps: 50}
}

// Split is the outcome of one claim.
type Split struct {
	Total        *uint256.Int
	GenesisShare *uint256.Int
	BuyBurnShare *uint256.Int
	IncentiveFee *uint256.Int
	BuyShare     *uint256.Int
}

// Distributor pulls native staking revenue from every stake account
// in one shot and splits it between the genesis pool, the two
// conversion engines and the triggering keeper.
type Distributor struct {
	cfg     Config
	custody chain.Address
	titan   token.StakingToken
	native  *chain.NativeLedger
	reg     *staking.Registry

	buyEngine  chain.Address
	burnEngine chain.Address

	// pending is revenue already swept to custody (from closed
	// stakes) but not yet distributed.
	pending      *uint256.Int
	totalClaimed *uint256.Int
}

func New(
	cfg Config,
	custody chain.Address,
	titan token.StakingToken,
	native *chain.NativeLedger,
	reg *staking.Registry,
	buyEngine, burnEngine chain.Address,
) *Distributor {
	return &Distributor{
		cfg:          cfg,
		custody:      custody,
		titan:        titan,
		native:       native,
		reg:          reg,
		buyEngine:    buyEngine,
		burnEngine:   burnEngine,
		pending:      uint256.NewInt(0),
		totalClaimed: uint256.NewInt(0),
	}
}

// CreditPending adds already-swept revenue to the pool awaiting the
// next claim. Called by the stake accounts when a position closes.
func (d *Distributor) CreditPending(amount *uint256.Int) {
	d.pending.Add(d.pending, amount)
}

// TotalClaimable is the pending pool plus everything the stake
// accounts could claim right now. Read-only.
func (d *Distributor) TotalClaimable() *uint256.Int {
	total := d.pending.Clone()
	for _, acct := range d.reg.Accounts() {
		total.Add(total, d.titan.ClaimablePayout(acct.Addr()))
	}
	return total
}

// IncentiveFeeForClaim reports what a keeper would earn by calling
// Claim now.
func (d *Distributor) IncentiveFeeForClaim() *uint256.Int {
	return chain.BpsShare(d.TotalClaimable(), d.cfg.IncentiveFeeBps)
}

// Claim pulls all claimable revenue and distributes it. Keeper entry
// point: top-level callers only, rejected when nothing is claimable.
func (d *Distributor) Claim(call chain.Call) (Split, error) {
	if !call.TopLevel {
		return Split{}, chain.ErrInvalidCaller
	}
	if d.TotalClaimable().IsZero() {
		return Split{}, ErrNoRevenueClaimable
	}

	// Run the protocol's payout cycle so the sweep below sees every
	// reward distributed up to now.
	d.titan.TriggerPayoutCycle()

	total := d.pending.Clone()
	d.pending.Clear()
	for _, acct := range d.reg.Accounts() {
		amount, err := d.titan.ClaimPayout(acct.Addr())
		if err != nil {
			return Split{}, fmt.Errorf("claim payout: %w", err)
		}
		if amount.IsZero() {
			continue
		}
		if err := d.native.Transfer(acct.Addr(), d.custody, amount); err != nil {
			return Split{}, fmt.Errorf("sweep payout: %w", err)
		}
		total.Add(total, amount)
	}

	split := Split{Total: total}
	split.GenesisShare = chain.BpsShare(total, d.cfg.GenesisShareBps)
	split.BuyBurnShare = chain.BpsShare(total, d.cfg.BuyBurnShareBps)
	split.IncentiveFee = chain.BpsShare(total, d.cfg.IncentiveFeeBps)
	split.BuyShare = new(uint256.Int).Sub(total, split.GenesisShare)
	split.BuyShare.Sub(split.BuyShare, split.BuyBurnShare)
	split.BuyShare.Sub(split.BuyShare, split.IncentiveFee)

	// The genesis share stays at custody; everything else moves.
	if err := d.native.Transfer(d.custody, call.Caller, split.IncentiveFee); err != nil {
		return Split{}, fmt.Errorf("pay incentive: %w", err)
	}
	if err := d.native.Transfer(d.custody, d.burnEngine, split.BuyBurnShare); err != nil {
		return Split{}, fmt.Errorf("fund burn engine: %w", err)
	}
	if err := d.native.Transfer(d.custody, d.buyEngine, split.BuyShare); err != nil {
		return Split{}, fmt.Errorf("fund buy engine: %w", err)
	}

	d.totalClaimed.Add(d.totalClaimed, total)
	return split, nil
}

func (d *Distributor) Pending() *uint256.Int      { return d.pending.Clone() }
func (d *Distributor) TotalClaimed() *uint256.Int { return d.totalClaimed.Clone() }
func (d *Distributor) GenesisShareBps() uint16    { return d.cfg.GenesisShareBps }
func (d *Distributor) BuyBurnShareBps() uint16    { return d.cfg.BuyBurnShareBps }
func (d *Distributor) IncentiveFeeBps() uint16    { return d.cfg.IncentiveFeeBps }

type distributorSnapshot struct {
	pending      *uint256.Int
	totalClaimed *uint256.Int
}

func (d *Distributor) Checkpoint() any {
	return distributorSnapshot{pending: d.pending.Clone(), totalClaimed: d.totalClaimed.Clone()}
}

func (d *Distributor) Restore(snapshot any) {
	snap := snapshot.(distributorSnapshot)
	d.pending = snap.pending
	d.totalClaimed = snap.totalClaimed
}
