package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeInitialLiquidityCreated
	TypeMinted
	TypeGenesisClaimed
	TypeClaimed
	TypeTargetBought
	TypeBoughtAndBurned
	TypeCollectedFees
	TypeStakeStarted
	TypeStakeEnded
	TypeStakeAccountDeployed
	TypeAssetsRecovered
)

var typeNames = map[Type]string{
	TypeUnknown:                 "unknown",
	TypeInitialLiquidityCreated: "initial_liquidity_created",
	TypeMinted:                  "minted",
	TypeGenesisClaimed:          "genesis_claimed",
	TypeClaimed:                 "claimed",
	TypeTargetBought:            "target_bought",
	TypeBoughtAndBurned:         "bought_and_burned",
	TypeCollectedFees:           "collected_fees",
	TypeStakeStarted:            "stake_started",
	TypeStakeEnded:              "stake_ended",
	TypeStakeAccountDeployed:    "stake_account_deployed",
	TypeAssetsRecovered:         "assets_recovered",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Envelope wraps every event appended to the log.
type Envelope struct {
	// Global monotonic sequence assigned by the engine.
	Sequence int64 `json:"sequence"`

	// Unique event id, used as the persistence dedup key.
	ID uuid.UUID `json:"id"`

	// Event type discriminator.
	Type Type `json:"type"`

	// Engine clock time at which the triggering call executed.
	Timestamp time.Time `json:"timestamp"`

	// Event-specific data, one of the payload structs in this package.
	Payload Event `json:"payload"`
}

// Event is implemented by all payloads.
type Event interface {
	EventType() Type
}
