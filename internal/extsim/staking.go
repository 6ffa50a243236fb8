package extsim

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/token"
)

// StakingSim is an in-memory stand-in for the external staking
// protocol: a token ledger with allowances plus per-owner positions
// that mature on the simulated clock and pay native-currency rewards.
type StakingSim struct {
	addr   chain.Address
	clock  clockwork.Clock
	native *chain.NativeLedger

	balances   map[chain.Address]*uint256.Int
	allowances map[[2]chain.Address]*uint256.Int

	stakes    map[chain.Address][]*simStake
	claimable map[chain.Address]*uint256.Int

	// rewardBps is the yield paid on principal at close.
	rewardBps uint16
}

type simStake struct {
	principal *uint256.Int
	maturity  time.Time
	closed    bool
}

func NewStakingSim(clock clockwork.Clock, native *chain.NativeLedger) *StakingSim {
	return &StakingSim{
		addr:       chain.AddressOf("sim:titan"),
		clock:      clock,
		native:     native,
		balances:   make(map[chain.Address]*uint256.Int),
		allowances: make(map[[2]chain.Address]*uint256.Int),
		stakes:     make(map[chain.Address][]*simStake),
		claimable:  make(map[chain.Address]*uint256.Int),
		rewardBps:  800,
	}
}

func (s *StakingSim) Address() chain.Address { return s.addr }

func (s *StakingSim) BalanceOf(addr chain.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (s *StakingSim) Allowance(owner, spender chain.Address) *uint256.Int {
	if a, ok := s.allowances[[2]chain.Address{owner, spender}]; ok {
		return a.Clone()
	}
	return uint256.NewInt(0)
}

func (s *StakingSim) Transfer(from, to chain.Address, amount *uint256.Int) error {
	bal := s.BalanceOf(from)
	if bal.Lt(amount) {
		return chain.ErrInsufficientFunds
	}
	s.balances[from] = bal.Sub(bal, amount)
	s.add(to, amount)
	return nil
}

func (s *StakingSim) TransferFrom(spender, owner, to chain.Address, amount *uint256.Int) error {
	key := [2]chain.Address{owner, spender}
	allowance := s.Allowance(owner, spender)
	if allowance.Lt(amount) {
		return errors.New("allowance exceeded")
	}
	if err := s.Transfer(owner, to, amount); err != nil {
		return err
	}
	s.allowances[key] = allowance.Sub(allowance, amount)
	return nil
}

func (s *StakingSim) OpenStake(owner chain.Address, amount *uint256.Int, durationHint time.Duration) (uint64, error) {
	bal := s.BalanceOf(owner)
	if bal.Lt(amount) {
		return 0, chain.ErrInsufficientFunds
	}
	s.balances[owner] = bal.Sub(bal, amount)
	s.stakes[owner] = append(s.stakes[owner], &simStake{
		principal: amount.Clone(),
		maturity:  s.clock.Now().Add(durationHint),
	})
	return uint64(len(s.stakes[owner])), nil
}

func (s *StakingSim) position(owner chain.Address, id uint64) (*simStake, error) {
	stakes := s.stakes[owner]
	if id == 0 || id > uint64(len(stakes)) {
		return nil, fmt.Errorf("no position %d for %s", id, owner)
	}
	return stakes[id-1], nil
}

func (s *StakingSim) GetPositionInfo(owner chain.Address, id uint64) (token.PositionInfo, error) {
	st, err := s.position(owner, id)
	if err != nil {
		return token.PositionInfo{}, err
	}
	return token.PositionInfo{
		MaturityTs: st.maturity,
		Principal:  st.principal.Clone(),
		Reward:     chain.BpsShare(st.principal, s.rewardBps),
	}, nil
}

func (s *StakingSim) ClosePosition(owner chain.Address, id uint64) (*uint256.Int, error) {
	st, err := s.position(owner, id)
	if err != nil {
		return nil, err
	}
	if st.closed {
		return nil, errors.New("position already closed")
	}
	if s.clock.Now().Before(st.maturity) {
		return nil, errors.New("position not mature")
	}
	st.closed = true
	proceeds := new(uint256.Int).Add(st.principal, chain.BpsShare(st.principal, s.rewardBps))
	s.add(owner, proceeds)
	return proceeds, nil
}

func (s *StakingSim) TriggerPayoutCycle()     {}
func (s *StakingSim) AdvanceDailyAccounting() {}

func (s *StakingSim) ClaimablePayout(owner chain.Address) *uint256.Int {
	if c, ok := s.claimable[owner]; ok {
		return c.Clone()
	}
	return uint256.NewInt(0)
}

func (s *StakingSim) ClaimPayout(owner chain.Address) (*uint256.Int, error) {
	amount := s.ClaimablePayout(owner)
	if amount.IsZero() {
		return amount, nil
	}
	delete(s.claimable, owner)
	// Payouts are credited at the ledger level, like a protocol-native
	// transfer, so receive guards do not apply.
	s.native.Credit(owner, amount)
	return amount, nil
}

func (s *StakingSim) add(addr chain.Address, amount *uint256.Int) {
	if bal, ok := s.balances[addr]; ok {
		bal.Add(bal, amount)
		return
	}
	s.balances[addr] = amount.Clone()
}

// --- test helpers ---

// Fund credits addr with staking tokens out of thin air.
func (s *StakingSim) Fund(addr chain.Address, amount *uint256.Int) {
	s.add(addr, amount)
}

// Approve sets owner's allowance for spender.
func (s *StakingSim) Approve(owner, spender chain.Address, amount *uint256.Int) {
	s.allowances[[2]chain.Address{owner, spender}] = amount.Clone()
}

// AccrueRevenue makes amount of native currency claimable by owner.
func (s *StakingSim) AccrueRevenue(owner chain.Address, amount *uint256.Int) {
	if c, ok := s.claimable[owner]; ok {
		c.Add(c, amount)
		return
	}
	s.claimable[owner] = amount.Clone()
}

type stakingSimSnapshot struct {
	balances   map[chain.Address]*uint256.Int
	allowances map[[2]chain.Address]*uint256.Int
	stakes     map[chain.Address][]*simStake
	claimable  map[chain.Address]*uint256.Int
}

func (s *StakingSim) Checkpoint() any {
	snap := stakingSimSnapshot{
		balances:   make(map[chain.Address]*uint256.Int, len(s.balances)),
		allowances: make(map[[2]chain.Address]*uint256.Int, len(s.allowances)),
		stakes:     make(map[chain.Address][]*simStake, len(s.stakes)),
		claimable:  make(map[chain.Address]*uint256.Int, len(s.claimable)),
	}
	for k, v := range s.balances {
		snap.balances[k] = v.Clone()
	}
	for k, v := range s.allowances {
		snap.allowances[k] = v.Clone()
	}
	for k, v := range s.stakes {
		stakes := make([]*simStake, len(v))
		for i, st := range v {
			stakes[i] = &simStake{principal: st.principal.Clone(), maturity: st.maturity, closed: st.closed}
		}
		snap.stakes[k] = stakes
	}
	for k, v := range s.claimable {
		snap.claimable[k] = v.Clone()
	}
	return snap
}

func (s *StakingSim) Restore(snapshot any) {
	snap := snapshot.(stakingSimSnapshot)
	s.balances = snap.balances
	s.allowances = snap.allowances
	s.stakes = snap.stakes
	s.claimable = snap.claimable
}
