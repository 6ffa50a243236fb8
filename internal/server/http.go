package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/DragonX2024888/DragonX/internal/buyback"
	"github.com/DragonX2024888/DragonX/internal/chain"
	"github.com/DragonX2024888/DragonX/internal/core"
	"github.com/DragonX2024888/DragonX/internal/observability"
	"github.com/DragonX2024888/DragonX/internal/query"
)

// Server exposes the engine over HTTP: read views under GET, keeper
// entry points under POST, owner configuration under PUT. Every POST
// body names its caller; the transport marks all of them top level.
type Server struct {
	engine  *core.Engine
	query   *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(
	engine *core.Engine,
	querySvc *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{engine: engine, query: querySvc, health: health, metrics: metrics, log: log}
}

// Router builds the HTTP routing table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/supply", s.instrument("supply", s.getSupply))
		r.Get("/mint", s.instrument("mint_status", s.getMint))
		r.Get("/buyback/buy", s.instrument("buy_status", s.getBuy))
		r.Get("/buyback/burn", s.instrument("burn_status", s.getBurn))
		r.Get("/staking", s.instrument("staking_status", s.getStaking))
		r.Get("/revenue", s.instrument("revenue_status", s.getRevenue))
		r.Get("/genesis", s.instrument("genesis_status", s.getGenesis))
		r.Get("/balances/{address}", s.instrument("balance", s.getBalance))
		r.Get("/events", s.instrument("events", s.getEvents))

		r.Post("/liquidity", s.instrument("create_liquidity", s.postLiquidity))
		r.Post("/mint", s.instrument("mint", s.postMint))
		r.Post("/genesis/claim", s.instrument("claim_genesis", s.postClaimGenesis))
		r.Post("/claim", s.instrument("claim", s.postClaim))
		r.Post("/buyback/buy/trigger", s.instrument("trigger_buy", s.postTriggerBuy))
		r.Post("/buyback/burn/trigger", s.instrument("trigger_burn", s.postTriggerBurn))
		r.Post("/fees/collect", s.instrument("collect_fees", s.postCollectFees))
		r.Post("/stake", s.instrument("stake", s.postStake))
		r.Post("/stake/deploy", s.instrument("deploy_stake_instance", s.postDeployStake))
		r.Post("/stake/end", s.instrument("end_stake", s.postEndStake))
		r.Post("/stake/recover", s.instrument("recover_assets", s.postRecoverAssets))

		r.Put("/config/buy", s.instrument("config_buy", s.putBuyConfig))
		r.Put("/config/burn", s.instrument("config_burn", s.putBurnConfig))
		r.Put("/config/staking", s.instrument("config_staking", s.putStakingConfig))
	})

	return r
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- reads ---

func (s *Server) getSupply(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.query.Supply())
}

func (s *Server) getMint(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.query.MintStatus())
}

func (s *Server) getBuy(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.query.BuyStatus())
}

func (s *Server) getBurn(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.query.BurnStatus())
}

func (s *Server) getStaking(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.query.StakingStatus())
}

func (s *Server) getRevenue(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.query.RevenueStatus())
}

func (s *Server) getGenesis(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.query.GenesisStatus())
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.query.Balance(addr))
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.query.Events(r.Context(), after, limit, r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// --- keeper entry points ---

type callRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount,omitempty"`
	Token    string `json:"token,omitempty"`
	Instance string `json:"instance,omitempty"`
	StakeID  uint64 `json:"stake_id,omitempty"`
}

func (s *Server) decodeCall(r *http.Request) (callRequest, chain.Address, error) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, chain.ZeroAddress, err
	}
	caller, err := chain.ParseAddress(req.Caller)
	if err != nil {
		return req, chain.ZeroAddress, err
	}
	return req, caller, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	return uint256.FromDecimal(s)
}

func (s *Server) postLiquidity(w http.ResponseWriter, r *http.Request) {
	req, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.engine.CreateInitialLiquidity(caller, amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"position_id": id})
}

func (s *Server) postMint(w http.ResponseWriter, r *http.Request) {
	req, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Mint(caller, amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount_in":     res.Amount.Dec(),
		"ratio_bps":     res.RatioBps,
		"minted":        res.Minted.Dec(),
		"genesis_token": res.GenesisDragonShare.Dec(),
		"genesis_asset": res.GenesisAssetShare.Dec(),
	})
}

func (s *Server) postClaimGenesis(w http.ResponseWriter, r *http.Request) {
	req, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	selector := chain.ZeroAddress
	if req.Token != "" {
		selector, err = chain.ParseAddress(req.Token)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	amount, err := s.engine.ClaimGenesis(caller, selector)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"amount": amount.Dec()})
}

func (s *Server) postClaim(w http.ResponseWriter, r *http.Request) {
	_, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	split, err := s.engine.Claim(caller)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":          split.Total.Dec(),
		"genesis_share":  split.GenesisShare.Dec(),
		"buy_burn_share": split.BuyBurnShare.Dec(),
		"incentive_fee":  split.IncentiveFee.Dec(),
		"buy_share":      split.BuyShare.Dec(),
	})
}

func (s *Server) postTriggerBuy(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, s.engine.TriggerBuy)
}

func (s *Server) postTriggerBurn(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, s.engine.TriggerBuyAndBurn)
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request, fn func(chain.Address) (buyback.Result, error)) {
	_, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := fn(caller)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount_in":     res.AmountIn.Dec(),
		"amount_out":    res.AmountOut.Dec(),
		"incentive_fee": res.IncentiveFee.Dec(),
	})
}

func (s *Server) postCollectFees(w http.ResponseWriter, r *http.Request) {
	_, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.CollectFees(caller); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) postStake(w http.ResponseWriter, r *http.Request) {
	_, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Stake(caller); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) postDeployStake(w http.ResponseWriter, r *http.Request) {
	_, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	instance, err := s.engine.DeployNewStakeInstance(caller)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"instance": instance.Hex()})
}

func (s *Server) postEndStake(w http.ResponseWriter, r *http.Request) {
	req, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	instance, err := chain.ParseAddress(req.Instance)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	proceeds, err := s.engine.EndStakeAfterMaturity(caller, instance, req.StakeID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"proceeds": proceeds.Dec()})
}

func (s *Server) postRecoverAssets(w http.ResponseWriter, r *http.Request) {
	req, caller, err := s.decodeCall(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	instance, err := chain.ParseAddress(req.Instance)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	swept, err := s.engine.RecoverAssets(caller, instance)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"recovered": swept.Dec()})
}

// --- owner configuration ---

type configRequest struct {
	Caller             string  `json:"caller"`
	CapPerSwap         *string `json:"cap_per_swap,omitempty"`
	SlippageBps        *uint16 `json:"slippage_bps,omitempty"`
	IntervalSeconds    *int64  `json:"interval_seconds,omitempty"`
	TwaWindowSeconds   *int64  `json:"twa_window_seconds,omitempty"`
	MaxOpenPerAccount  *int    `json:"max_open_per_account,omitempty"`
	ImmediateThreshold *string `json:"immediate_threshold,omitempty"`
}

type buybackSetters struct {
	cap       func(chain.Address, *uint256.Int) error
	slippage  func(chain.Address, uint16) error
	interval  func(chain.Address, time.Duration) error
	twaWindow func(chain.Address, time.Duration) error
}

func (s *Server) putBuyConfig(w http.ResponseWriter, r *http.Request) {
	s.putBuybackConfig(w, r, buybackSetters{
		cap:       s.engine.SetBuyCapPerSwap,
		slippage:  s.engine.SetBuySlippageBps,
		interval:  s.engine.SetBuyInterval,
		twaWindow: s.engine.SetBuyTwaWindow,
	})
}

func (s *Server) putBurnConfig(w http.ResponseWriter, r *http.Request) {
	s.putBuybackConfig(w, r, buybackSetters{
		cap:       s.engine.SetBurnCapPerSwap,
		slippage:  s.engine.SetBurnSlippageBps,
		interval:  s.engine.SetBurnInterval,
		twaWindow: s.engine.SetBurnTwaWindow,
	})
}

func (s *Server) putBuybackConfig(w http.ResponseWriter, r *http.Request, set buybackSetters) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := chain.ParseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.CapPerSwap != nil {
		cap, err := parseAmount(*req.CapPerSwap)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := set.cap(caller, cap); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.SlippageBps != nil {
		if err := set.slippage(caller, *req.SlippageBps); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.IntervalSeconds != nil {
		if err := set.interval(caller, time.Duration(*req.IntervalSeconds)*time.Second); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.TwaWindowSeconds != nil {
		if err := set.twaWindow(caller, time.Duration(*req.TwaWindowSeconds)*time.Second); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) putStakingConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := chain.ParseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MaxOpenPerAccount != nil {
		if err := s.engine.SetStakeMaxOpen(caller, *req.MaxOpenPerAccount); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.ImmediateThreshold != nil {
		threshold, err := parseAmount(*req.ImmediateThreshold)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.engine.SetStakeImmediateThreshold(caller, threshold); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// --- plumbing ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps engine rejections to HTTP statuses. Cooldowns
// are conflicts keepers are expected to race into; authorization
// failures are forbidden; everything else is an unprocessable call.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chain.ErrNotOwner), errors.Is(err, chain.ErrInvalidCaller):
		s.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, chain.ErrCooldownActive):
		s.writeError(w, http.StatusConflict, err)
	default:
		s.writeError(w, http.StatusUnprocessableEntity, err)
	}
}
