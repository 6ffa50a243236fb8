package staking

import "github.com/holiman/uint256"

// Vault is the pool of undeployed staking asset awaiting conversion
// into a staking position. The mint ladder and the buy engine credit
// it; the registry drains it when opening a stake. The balance never
// goes negative because the only debit empties it entirely.
type Vault struct {
	balance *uint256.Int
}

func NewVault() *Vault {
	return &Vault{balance: uint256.NewInt(0)}
}

func (v *Vault) Balance() *uint256.Int {
	return v.balance.Clone()
}

func (v *Vault) Add(amount *uint256.Int) {
	v.balance.Add(v.balance, amount)
}

// DrainAll zeroes the vault and returns what it held.
func (v *Vault) DrainAll() *uint256.Int {
	out := v.balance
	v.balance = uint256.NewInt(0)
	return out
}

func (v *Vault) Checkpoint() any {
	return v.balance.Clone()
}

func (v *Vault) Restore(snapshot any) {
	v.balance = snapshot.(*uint256.Int)
}
