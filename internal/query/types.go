package query

import (
	"encoding/json"
	"time"
)

// EventResponse is one event-log row for API queries.
type EventResponse struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// SupplyResponse reports protocol-token supply facts.
type SupplyResponse struct {
	TotalSupply string `json:"total_supply"`
	TotalBurned string `json:"total_burned"`
	AsOfSeq     int64  `json:"as_of_sequence"`
}

// MintResponse reports the mint window and current ratio.
type MintResponse struct {
	WindowBegin     time.Time `json:"window_begin"`
	WindowEnd       time.Time `json:"window_end"`
	RatioBps        uint16    `json:"ratio_bps"`
	LiquidityMinted bool      `json:"liquidity_minted"`
	AsOfSeq         int64     `json:"as_of_sequence"`
}

// BuybackResponse reports one conversion engine's state.
type BuybackResponse struct {
	Name                string    `json:"name"`
	Balance             string    `json:"balance"`
	LastCall            time.Time `json:"last_call"`
	NextCall            time.Time `json:"next_call"`
	CapPerSwap          string    `json:"cap_per_swap"`
	IntervalSeconds     int64     `json:"interval_seconds"`
	SlippageBps         uint16    `json:"slippage_bps"`
	TwaWindowSeconds    int64     `json:"twa_window_seconds"`
	IncentiveFeeBps     uint16    `json:"incentive_fee_bps"`
	NextTriggerAmount   string    `json:"next_trigger_amount"`
	NextTriggerFee      string    `json:"next_trigger_fee"`
	TotalSourceUsed     string    `json:"total_source_used"`
	TotalTargetAcquired string    `json:"total_target_acquired"`
	AsOfSeq             int64     `json:"as_of_sequence"`
}

// StakeAccountResponse describes one stake account.
type StakeAccountResponse struct {
	Instance    string `json:"instance"`
	OpenCount   int    `json:"open_count"`
	ClosedCount int    `json:"closed_count"`
	Active      bool   `json:"active"`
}

// StakingResponse reports the stake registry's state.
type StakingResponse struct {
	VaultBalance      string                 `json:"vault_balance"`
	TotalStaked       string                 `json:"total_staked"`
	TotalUnstaked     string                 `json:"total_unstaked"`
	NextStakeTs       time.Time              `json:"next_stake_ts"`
	MaxOpenPerAccount int                    `json:"max_open_per_account"`
	Accounts          []StakeAccountResponse `json:"accounts"`
	MaturedFound      bool                   `json:"matured_found"`
	MaturedInstance   string                 `json:"matured_instance,omitempty"`
	MaturedID         uint64                 `json:"matured_id,omitempty"`
	AsOfSeq           int64                  `json:"as_of_sequence"`
}

// RevenueResponse reports the claim distributor's state.
type RevenueResponse struct {
	TotalClaimable  string `json:"total_claimable"`
	IncentiveFee    string `json:"incentive_fee"`
	Pending         string `json:"pending"`
	TotalClaimed    string `json:"total_claimed"`
	GenesisShareBps uint16 `json:"genesis_share_bps"`
	BuyBurnShareBps uint16 `json:"buy_burn_share_bps"`
	IncentiveFeeBps uint16 `json:"incentive_fee_bps"`
	AsOfSeq         int64  `json:"as_of_sequence"`
}

// GenesisResponse reports the unclaimed genesis allocations.
type GenesisResponse struct {
	Token   string `json:"token"`
	Asset   string `json:"asset"`
	Native  string `json:"native"`
	AsOfSeq int64  `json:"as_of_sequence"`
}

// BalanceResponse reports one holder's protocol-token balance.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	AsOfSeq int64  `json:"as_of_sequence"`
}
