package extsim

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/token"
)

// ProtocolToken is the slice of the token surface the pool needs to
// settle swap outputs and fee collections.
type ProtocolToken interface {
	Transfer(from, to chain.Address, amount *uint256.Int) error
	BalanceOf(addr chain.Address) *uint256.Int
	Address() chain.Address
}

// AMMSim is a pool stand-in with a directly settable price. Swaps pay
// out of the pool's own token holdings, so supply accounting stays
// exact across a test. Prices are tokenOut-per-tokenIn at 1e18 scale
// and serve as both spot and TWA.
type AMMSim struct {
	addr   chain.Address
	native *chain.NativeLedger
	titan  *StakingSim
	dragon ProtocolToken

	// prices maps tokenIn->tokenOut pairs.
	prices map[[2]chain.Address]*uint256.Int

	positions      uint64
	positionOwners map[uint64]chain.Address
	accruedFees    map[uint64][2]*uint256.Int
}

func NewAMMSim(native *chain.NativeLedger, titan *StakingSim) *AMMSim {
	return &AMMSim{
		addr:           chain.AddressOf("sim:pool"),
		native:         native,
		titan:          titan,
		prices:         make(map[[2]chain.Address]*uint256.Int),
		positionOwners: make(map[uint64]chain.Address),
		accruedFees:    make(map[uint64][2]*uint256.Int),
	}
}

func (p *AMMSim) Addr() chain.Address { return p.addr }

// BindProtocolToken wires the pool to the protocol token. The token is
// constructed after the pool, so binding happens in a second step.
func (p *AMMSim) BindProtocolToken(dragon ProtocolToken) { p.dragon = dragon }

// SetPrice fixes the tokenIn->tokenOut rate at 1e18 scale.
func (p *AMMSim) SetPrice(tokenIn, tokenOut chain.Address, price *uint256.Int) {
	p.prices[[2]chain.Address{tokenIn, tokenOut}] = price.Clone()
}

func (p *AMMSim) price(tokenIn, tokenOut chain.Address) (*uint256.Int, error) {
	if price, ok := p.prices[[2]chain.Address{tokenIn, tokenOut}]; ok {
		return price.Clone(), nil
	}
	return nil, fmt.Errorf("no price for pair %s -> %s", tokenIn, tokenOut)
}

func (p *AMMSim) SpotPrice(tokenIn, tokenOut chain.Address) (*uint256.Int, error) {
	return p.price(tokenIn, tokenOut)
}

func (p *AMMSim) TwaPrice(tokenIn, tokenOut chain.Address, window time.Duration) (*uint256.Int, error) {
	return p.price(tokenIn, tokenOut)
}

func (p *AMMSim) SwapExactInput(amountIn, minOut *uint256.Int, tokenIn, tokenOut, recipient chain.Address) (*uint256.Int, error) {
	price, err := p.price(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int).Mul(amountIn, price)
	out.Div(out, token.PriceScale)
	if out.Lt(minOut) {
		return nil, errors.New("slippage check failed")
	}
	if err := p.pay(tokenOut, recipient, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *AMMSim) pay(tokenOut, recipient chain.Address, amount *uint256.Int) error {
	switch {
	case tokenOut == p.titan.Address():
		return p.titan.Transfer(p.addr, recipient, amount)
	case p.dragon != nil && tokenOut == p.dragon.Address():
		return p.dragon.Transfer(p.addr, recipient, amount)
	case tokenOut == chain.ZeroAddress:
		return p.native.Transfer(p.addr, recipient, amount)
	default:
		return fmt.Errorf("unknown token %s", tokenOut)
	}
}

func (p *AMMSim) CreatePosition(owner chain.Address, amount0, amount1 *uint256.Int) (uint64, error) {
	p.positions++
	p.positionOwners[p.positions] = owner
	return p.positions, nil
}

// SetAccruedFees stages the fees the next CollectFees returns, in
// (protocol token, staking asset) order. The amounts must already sit
// on the pool.
func (p *AMMSim) SetAccruedFees(positionID uint64, dragonFees, titanFees *uint256.Int) {
	p.accruedFees[positionID] = [2]*uint256.Int{dragonFees.Clone(), titanFees.Clone()}
}

func (p *AMMSim) CollectFees(positionID uint64) (*uint256.Int, *uint256.Int, error) {
	if positionID == 0 || positionID > p.positions {
		return nil, nil, fmt.Errorf("unknown position %d", positionID)
	}
	fees, ok := p.accruedFees[positionID]
	if !ok {
		return uint256.NewInt(0), uint256.NewInt(0), nil
	}
	delete(p.accruedFees, positionID)
	owner := p.positionOwners[positionID]
	if !fees[0].IsZero() {
		if err := p.dragon.Transfer(p.addr, owner, fees[0]); err != nil {
			return nil, nil, err
		}
	}
	if !fees[1].IsZero() {
		if err := p.titan.Transfer(p.addr, owner, fees[1]); err != nil {
			return nil, nil, err
		}
	}
	return fees[0].Clone(), fees[1].Clone(), nil
}

type ammSimSnapshot struct {
	prices         map[[2]chain.Address]*uint256.Int
	positions      uint64
	positionOwners map[uint64]chain.Address
	accruedFees    map[uint64][2]*uint256.Int
}

func (p *AMMSim) Checkpoint() any {
	snap := ammSimSnapshot{
		prices:         make(map[[2]chain.Address]*uint256.Int, len(p.prices)),
		positions:      p.positions,
		positionOwners: make(map[uint64]chain.Address, len(p.positionOwners)),
		accruedFees:    make(map[uint64][2]*uint256.Int, len(p.accruedFees)),
	}
	for k, v := range p.prices {
		snap.prices[k] = v.Clone()
	}
	for k, v := range p.positionOwners {
		snap.positionOwners[k] = v
	}
	for k, v := range p.accruedFees {
		snap.accruedFees[k] = [2]*uint256.Int{v[0].Clone(), v[1].Clone()}
	}
	return snap
}

func (p *AMMSim) Restore(snapshot any) {
	snap := snapshot.(ammSimSnapshot)
	p.prices = snap.prices
	p.positions = snap.positions
	p.positionOwners = snap.positionOwners
	p.accruedFees = snap.accruedFees
}
