package chain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ReceiveGuard decides whether sender may transfer native currency into
// the guarded account. Component accounts register guards so donation or
// griefing transfers cannot corrupt their accounting; unguarded accounts
// (user wallets) accept from anyone.
type ReceiveGuard func(sender Address) bool

// NativeLedger tracks native settlement-currency balances. All mutation
// goes through Transfer and Credit; there is no ambient access.
type NativeLedger struct {
	balances map[Address]*uint256.Int
	guards   map[Address]ReceiveGuard
}

func NewNativeLedger() *NativeLedger {
	return &NativeLedger{
		balances: make(map[Address]*uint256.Int),
		guards:   make(map[Address]ReceiveGuard),
	}
}

// SetReceiveGuard installs the receive guard for addr. Guards are part
// of wiring, not of transactional state, so they are not checkpointed.
func (l *NativeLedger) SetReceiveGuard(addr Address, guard ReceiveGuard) {
	l.guards[addr] = guard
}

func (l *NativeLedger) BalanceOf(addr Address) *uint256.Int {
	if b, ok := l.balances[addr]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// Credit mints native currency into addr bypassing receive guards.
// Reserved for the execution substrate (test faucets, payout sources).
func (l *NativeLedger) Credit(addr Address, amount *uint256.Int) {
	l.add(addr, amount)
}

// Transfer moves amount from sender to recipient, honoring the
// recipient's receive guard.
func (l *NativeLedger) Transfer(from, to Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if guard, ok := l.guards[to]; ok && !guard(from) {
		return fmt.Errorf("native transfer to %s: %w", to, ErrUnauthorizedSender)
	}
	bal, ok := l.balances[from]
	if !ok || bal.Lt(amount) {
		return fmt.Errorf("native transfer from %s: %w", from, ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	l.add(to, amount)
	return nil
}

func (l *NativeLedger) add(addr Address, amount *uint256.Int) {
	if b, ok := l.balances[addr]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[addr] = amount.Clone()
}

func (l *NativeLedger) Checkpoint() any {
	snap := make(map[Address]*uint256.Int, len(l.balances))
	for addr, b := range l.balances {
		snap[addr] = b.Clone()
	}
	return snap
}

func (l *NativeLedger) Restore(snapshot any) {
	l.balances = snapshot.(map[Address]*uint256.Int)
}
