package staking

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/token"
)

var (
	ErrStakeNotMature = errors.New("StakeNotMature")
	errInvalidID      = errors.New("invalid ID")
)

// Account is one capacity-limited staking sub-ledger. The registry is
// its owner: only the registry opens positions on it. Closing matured
// positions is permissionless. Accounts are never deleted; closed
// positions stay for historical accounting.
//
// Position ids are per-account and start at 1, matching the external
// protocol's numbering.
type Account struct {
	addr     chain.Address
	registry *Registry
	titan    token.StakingToken
	native   *chain.NativeLedger

	openCount   int
	closedCount int
	closed      map[uint64]bool
}

func (a *Account) Addr() chain.Address { return a.addr }

// OpenCount is the number of positions ever opened on this account.
func (a *Account) OpenCount() int { return a.openCount }

// ClosedCount is the number of positions closed so far.
func (a *Account) ClosedCount() int { return a.closedCount }

// openStake is registry-only: stake funds already sit on the account.
func (a *Account) openStake(amount *uint256.Int, durationHint time.Duration) error {
	id, err := a.titan.OpenStake(a.addr, amount, durationHint)
	if err != nil {
		return fmt.Errorf("open stake: %w", err)
	}
	if id != uint64(a.openCount)+1 {
		return fmt.Errorf("open stake: unexpected position id %d", id)
	}
	a.openCount++
	return nil
}

// EndStakeAfterMaturity closes a matured position. Permissionless.
// Zero, out-of-range and already-closed ids are all rejected as
// invalid, so the call succeeds exactly once per position.
func (a *Account) EndStakeAfterMaturity(id uint64) (*uint256.Int, error) {
	if id == 0 || id > uint64(a.openCount) || a.closed[id] {
		return nil, errInvalidID
	}
	info, err := a.titan.GetPositionInfo(a.addr, id)
	if err != nil {
		return nil, fmt.Errorf("position info: %w", err)
	}
	if a.registry.clock.Now().Before(info.MaturityTs) {
		return nil, ErrStakeNotMature
	}

	// Mark closed before touching the collaborator so a reentrant
	// observer cannot close the same id twice.
	a.closed[id] = true
	a.closedCount++

	proceeds, err := a.titan.ClosePosition(a.addr, id)
	if err != nil {
		return nil, fmt.Errorf("close position: %w", err)
	}
	if err := a.titan.Transfer(a.addr, a.registry.custody, proceeds); err != nil {
		return nil, fmt.Errorf("forward proceeds: %w", err)
	}
	if err := a.registry.OnStakeEnded(a.addr, proceeds); err != nil {
		return nil, err
	}

	// Any native reward sitting on the account joins the claimable
	// revenue pool.
	reward := a.native.BalanceOf(a.addr)
	if !reward.IsZero() {
		if err := a.native.Transfer(a.addr, a.registry.custody, reward); err != nil {
			return nil, fmt.Errorf("forward native reward: %w", err)
		}
		a.registry.revenue.CreditPending(reward)
	}
	return proceeds, nil
}

// RecoverAssets sweeps staking-asset balance held directly by the
// account back into the vault. The external protocol lets third
// parties force-close other owners' positions and misroute proceeds
// here, so this is permissionless and a no-op when there is nothing
// to sweep.
func (a *Account) RecoverAssets() (*uint256.Int, error) {
	bal := a.titan.BalanceOf(a.addr)
	if bal.IsZero() {
		return bal, nil
	}
	if err := a.titan.Transfer(a.addr, a.registry.custody, bal); err != nil {
		return nil, fmt.Errorf("recover assets: %w", err)
	}
	a.registry.vault.Add(bal)
	return bal, nil
}

type accountSnapshot struct {
	openCount   int
	closedCount int
	closed      map[uint64]bool
}

func (a *Account) Checkpoint() any {
	closed := make(map[uint64]bool, len(a.closed))
	for id, c := range a.closed {
		closed[id] = c
	}
	return accountSnapshot{openCount: a.openCount, closedCount: a.closedCount, closed: closed}
}

func (a *Account) Restore(snapshot any) {
	snap := snapshot.(accountSnapshot)
	a.openCount = snap.openCount
	a.closedCount = snap.closedCount
	a.closed = snap.closed
}
