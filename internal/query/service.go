package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/core"
)

// Service serves read-only views. Live state comes from the engine's
// locked accessors; history comes from the Postgres event log.
type Service struct {
	engine *core.Engine
	db     *sql.DB
}

func NewService(engine *core.Engine, db *sql.DB) *Service {
	return &Service{engine: engine, db: db}
}

func (s *Service) Supply() SupplyResponse {
	v := s.engine.Supply()
	return SupplyResponse{
		TotalSupply: v.TotalSupply.Dec(),
		TotalBurned: v.TotalBurned.Dec(),
		AsOfSeq:     s.engine.Sequence(),
	}
}

func (s *Service) MintStatus() MintResponse {
	v := s.engine.MintStatus()
	return MintResponse{
		WindowBegin:     v.WindowBegin,
		WindowEnd:       v.WindowEnd,
		RatioBps:        v.RatioBps,
		LiquidityMinted: v.LiquidityMinted,
		AsOfSeq:         s.engine.Sequence(),
	}
}

func (s *Service) BuyStatus() BuybackResponse  { return s.buybackResponse(s.engine.BuyStatus()) }
func (s *Service) BurnStatus() BuybackResponse { return s.buybackResponse(s.engine.BurnStatus()) }

func (s *Service) buybackResponse(v core.BuybackView) BuybackResponse {
	return BuybackResponse{
		Name:                v.Name,
		Balance:             v.Balance.Dec(),
		LastCall:            v.LastCall,
		NextCall:            v.NextCall,
		CapPerSwap:          v.CapPerSwap.Dec(),
		IntervalSeconds:     int64(v.Interval.Seconds()),
		SlippageBps:         v.SlippageBps,
		TwaWindowSeconds:    int64(v.TwaWindow.Seconds()),
		IncentiveFeeBps:     v.IncentiveFeeBps,
		NextTriggerAmount:   v.NextTriggerAmount.Dec(),
		NextTriggerFee:      v.NextTriggerFee.Dec(),
		TotalSourceUsed:     v.TotalSourceUsed.Dec(),
		TotalTargetAcquired: v.TotalTargetAcquired.Dec(),
		AsOfSeq:             s.engine.Sequence(),
	}
}

func (s *Service) StakingStatus() StakingResponse {
	v := s.engine.StakingStatus()
	resp := StakingResponse{
		VaultBalance:      v.VaultBalance.Dec(),
		TotalStaked:       v.TotalStaked.Dec(),
		TotalUnstaked:     v.TotalUnstaked.Dec(),
		NextStakeTs:       v.NextStakeTs,
		MaxOpenPerAccount: v.MaxOpenPerAccount,
		MaturedFound:      v.MaturedFound,
		MaturedID:         v.MaturedID,
		AsOfSeq:           s.engine.Sequence(),
	}
	if v.MaturedFound {
		resp.MaturedInstance = v.MaturedInstance.Hex()
	}
	for _, acct := range v.Accounts {
		resp.Accounts = append(resp.Accounts, StakeAccountResponse{
			Instance:    acct.Instance.Hex(),
			OpenCount:   acct.OpenCount,
			ClosedCount: acct.ClosedCount,
			Active:      acct.Active,
		})
	}
	return resp
}

func (s *Service) RevenueStatus() RevenueResponse {
	v := s.engine.RevenueStatus()
	return RevenueResponse{
		TotalClaimable:  v.TotalClaimable.Dec(),
		IncentiveFee:    v.IncentiveFee.Dec(),
		Pending:         v.Pending.Dec(),
		TotalClaimed:    v.TotalClaimed.Dec(),
		GenesisShareBps: v.GenesisShareBps,
		BuyBurnShareBps: v.BuyBurnShareBps,
		IncentiveFeeBps: v.IncentiveFeeBps,
		AsOfSeq:         s.engine.Sequence(),
	}
}

func (s *Service) GenesisStatus() GenesisResponse {
	v := s.engine.GenesisStatus()
	return GenesisResponse{
		Token:   v.Token.Dec(),
		Asset:   v.Asset.Dec(),
		Native:  v.Native.Dec(),
		AsOfSeq: s.engine.Sequence(),
	}
}

func (s *Service) Balance(addr chain.Address) BalanceResponse {
	return BalanceResponse{
		Address: addr.Hex(),
		Balance: s.engine.BalanceOf(addr).Dec(),
		AsOfSeq: s.engine.Sequence(),
	}
}

// Events pages through the event log, oldest first from afterSeq.
// eventType filters when non-empty. Requires a database.
func (s *Service) Events(ctx context.Context, afterSeq int64, limit int, eventType string) ([]EventResponse, error) {
	if s.db == nil {
		return nil, fmt.Errorf("event history requires a database")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT sequence, event_id, event_type, payload, timestamp
		FROM event_log.events
		WHERE sequence > $1`
	args := []interface{}{afterSeq}
	if eventType != "" {
		query += ` AND event_type = $2`
		args = append(args, eventType)
	}
	query += fmt.Sprintf(` ORDER BY sequence ASC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		if err := rows.Scan(&e.Sequence, &e.EventID, &e.EventType, &e.Payload, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
