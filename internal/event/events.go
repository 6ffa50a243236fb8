package event

import "github.com/DragonX2024888/DragonX/internal/chain"

// Amounts are decimal strings of the underlying 256-bit integers so
// payloads survive JSON round-trips without precision loss.

type InitialLiquidityCreated struct {
	Caller     chain.Address `json:"caller"`
	Amount     string        `json:"amount"`
	PositionID uint64        `json:"position_id"`
}

func (e *InitialLiquidityCreated) EventType() Type { return TypeInitialLiquidityCreated }

type Minted struct {
	Caller       chain.Address `json:"caller"`
	AmountIn     string        `json:"amount_in"`
	RatioBps     uint64        `json:"ratio_bps"`
	Minted       string        `json:"minted"`
	GenesisToken string        `json:"genesis_token"`
	GenesisAsset string        `json:"genesis_asset"`
}

func (e *Minted) EventType() Type { return TypeMinted }

type GenesisClaimed struct {
	Caller chain.Address `json:"caller"`
	Token  chain.Address `json:"token"`
	Amount string        `json:"amount"`
}

func (e *GenesisClaimed) EventType() Type { return TypeGenesisClaimed }

type Claimed struct {
	Caller       chain.Address `json:"caller"`
	Total        string        `json:"total"`
	GenesisShare string        `json:"genesis_share"`
	BuyBurnShare string        `json:"buy_burn_share"`
	IncentiveFee string        `json:"incentive_fee"`
	BuyShare     string        `json:"buy_share"`
}

func (e *Claimed) EventType() Type { return TypeClaimed }

type TargetBought struct {
	Caller       chain.Address `json:"caller"`
	AmountIn     string        `json:"amount_in"`
	AmountOut    string        `json:"amount_out"`
	IncentiveFee string        `json:"incentive_fee"`
}

func (e *TargetBought) EventType() Type { return TypeTargetBought }

type BoughtAndBurned struct {
	Caller       chain.Address `json:"caller"`
	AmountIn     string        `json:"amount_in"`
	Burned       string        `json:"burned"`
	IncentiveFee string        `json:"incentive_fee"`
}

func (e *BoughtAndBurned) EventType() Type { return TypeBoughtAndBurned }

type CollectedFees struct {
	Caller      chain.Address `json:"caller"`
	TokenBurned string        `json:"token_burned"`
	AssetAmount string        `json:"asset_amount"`
}

func (e *CollectedFees) EventType() Type { return TypeCollectedFees }

type StakeStarted struct {
	Caller   chain.Address `json:"caller"`
	Instance chain.Address `json:"instance"`
	Amount   string        `json:"amount"`
}

func (e *StakeStarted) EventType() Type { return TypeStakeStarted }

type StakeEnded struct {
	Caller   chain.Address `json:"caller"`
	Instance chain.Address `json:"instance"`
	StakeID  uint64        `json:"stake_id"`
	Proceeds string        `json:"proceeds"`
}

func (e *StakeEnded) EventType() Type { return TypeStakeEnded }

type StakeAccountDeployed struct {
	Instance chain.Address `json:"instance"`
	Index    int           `json:"index"`
}

func (e *StakeAccountDeployed) EventType() Type { return TypeStakeAccountDeployed }

type AssetsRecovered struct {
	Caller   chain.Address `json:"caller"`
	Instance chain.Address `json:"instance"`
	Amount   string        `json:"amount"`
}

func (e *AssetsRecovered) EventType() Type { return TypeAssetsRecovered }
