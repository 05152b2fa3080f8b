package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hera/internal/config"
	"hera/internal/contracts"
	"hera/internal/hmacauth"
	"hera/internal/idempotency"
	"hera/internal/will"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const headerIdempotencyKey = "X-Idempotency-Key"

type Server struct {
	cfg         *config.AppConfig
	svc         *will.Service
	store       idempotency.Store
	hmac        *hmacauth.Verifier
	httpServer  *http.Server
	router      *mux.Router
	metrics     *metricsRegistry
	now         func() time.Time
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewServer wires the HTTP surface onto svc. now drives the derived fields of
// responses and should be the clock the service uses.
func NewServer(cfg *config.AppConfig, svc *will.Service, store idempotency.Store, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{
		cfg:         cfg,
		svc:         svc,
		store:       store,
		metrics:     newMetricsRegistry(),
		now:         now,
		dbHealthFn:  store.Ping,
		rpcHealthFn: svc.Ping,
		inflight:    make(map[string]struct{}),
	}
	s.hmac = &hmacauth.Verifier{
		Secret:  cfg.Service.HMACSecret,
		MaxSkew: cfg.Service.HMACClockSkew,
		Reject: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
		},
	}
	s.router = s.routes()

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)

	api.HandleFunc("/contract", s.handleContract).Methods(http.MethodGet)
	api.HandleFunc("/wills/{grantor}", s.handleGetWill).Methods(http.MethodGet)
	api.HandleFunc("/wills/{grantor}/assets/{index}", s.handleGetAsset).Methods(http.MethodGet)
	api.HandleFunc("/wills/{grantor}/beneficiaries/{beneficiary}/assets", s.handleBeneficiaryAssets).Methods(http.MethodGet)
	api.HandleFunc("/wills/{grantor}/beneficiaries/{beneficiary}/approval", s.handleApproval).Methods(http.MethodGet)

	api.Handle("/will", s.write(contracts.OpCreateWill, s.createWill)).Methods(http.MethodPost)
	api.Handle("/will/deposits/eth", s.write(contracts.OpDepositEth, s.depositEth)).Methods(http.MethodPost)
	api.Handle("/will/deposits/erc20", s.write(contracts.OpDepositERC20, s.depositERC20)).Methods(http.MethodPost)
	api.Handle("/will/deposits/erc721", s.write(contracts.OpDepositERC721, s.depositERC721)).Methods(http.MethodPost)
	api.Handle("/will/check-in", s.write(contracts.OpCheckIn, s.checkIn)).Methods(http.MethodPost)
	api.Handle("/will/heartbeat", s.write(contracts.OpModifyHeartbeat, s.modifyHeartbeat)).Methods(http.MethodPost)
	api.Handle("/will/heartbeat/extend", s.write(contracts.OpExtendHeartbeat, s.extendHeartbeat)).Methods(http.MethodPost)
	api.Handle("/will/emergency-withdraw", s.write(contracts.OpEmergencyWithdraw, s.emergencyWithdraw)).Methods(http.MethodPost)
	api.Handle("/will/assets/{index}/remove", s.write(contracts.OpRemoveAsset, s.removeAsset)).Methods(http.MethodPost)
	api.Handle("/will/assets/{index}/beneficiary", s.write(contracts.OpUpdateBeneficiary, s.updateBeneficiary)).Methods(http.MethodPost)
	api.Handle("/will/contract-beneficiaries/{beneficiary}", s.write(contracts.OpApproveContractBeneficiary, s.approveContractBeneficiary)).Methods(http.MethodPost)
	api.Handle("/will/contract-beneficiaries/{beneficiary}", s.write(contracts.OpRevokeContractBeneficiary, s.revokeContractBeneficiary)).Methods(http.MethodDelete)

	api.Handle("/wills/{grantor}/accept", s.write(contracts.OpAcceptBeneficiary, s.acceptBeneficiary)).Methods(http.MethodPost)
	api.Handle("/wills/{grantor}/reject", s.write(contracts.OpRejectBeneficiary, s.rejectBeneficiary)).Methods(http.MethodPost)
	api.Handle("/wills/{grantor}/update-state", s.write(contracts.OpUpdateState, s.updateState)).Methods(http.MethodPost)
	api.Handle("/wills/{grantor}/assets/{index}/claim", s.write(contracts.OpClaimAsset, s.claimAsset)).Methods(http.MethodPost)

	api.Handle("/admin/pause", s.write(contracts.OpPause, s.pause)).Methods(http.MethodPost)
	api.Handle("/admin/unpause", s.write(contracts.OpUnpause, s.unpause)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	log.Printf("API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type writeFunc func(r *http.Request) (*will.Outcome, error)

// write wraps a lifecycle operation with signature checks and replay of
// earlier confirmed responses. Failures are never stored: a retry with the
// same key after a rejection or an unconfirmed inclusion runs again.
func (s *Server) write(op string, fn writeFunc) http.Handler {
	return s.hmac.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		clientKey := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
		if clientKey == "" {
			writeError(w, r, http.StatusBadRequest, "validation_failed", "missing "+headerIdempotencyKey+" header")
			return
		}
		signer, err := s.svc.Signer()
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		key := idempotency.Key(signer.Hex(), op, clientKey)

		// A failed lookup must not fall through to a fresh submission.
		existing, err := s.store.Get(ctx, key)
		if err != nil {
			log.Printf("[%s] idempotency lookup for %s failed: %v", requestID(r), op, err)
			writeError(w, r, http.StatusServiceUnavailable, "store_unavailable", "idempotency store unavailable")
			return
		}
		if existing != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(existing.StatusCode)
			_, _ = w.Write(existing.Response)
			s.metrics.incReplay(op)
			return
		}
		if !s.acquire(key) {
			writeError(w, r, http.StatusConflict, "in_progress", "a request with this idempotency key is still running")
			return
		}
		defer s.release(key)

		out, err := fn(r)
		s.metrics.observeOperation(op, outcomeLabel(err), start)
		if err != nil {
			log.Printf("[%s] %s: %v", requestID(r), op, err)
			writeLedgerError(w, r, err)
			return
		}

		body, err := json.Marshal(newOutcomeResponse(out, s.now()))
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		record := idempotency.Record{
			Operation:  op,
			Signer:     signer.Hex(),
			TxHash:     out.Receipt.TxHash.Hex(),
			StatusCode: http.StatusOK,
			Response:   body,
			CreatedAt:  time.Now(),
			ExpiresAt:  time.Now().Add(s.cfg.Service.IdempotencyWindow),
		}
		if err := s.store.Save(ctx, key, record); err != nil {
			log.Printf("[%s] idempotency save for %s failed: %v", requestID(r), op, err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
}

func (s *Server) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Server) release(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Signer    string  `json:"signer,omitempty"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	}
	if signer, err := s.svc.Signer(); err != nil {
		if rpcInfo.Error == "" {
			rpcInfo.Error = err.Error()
		}
		overallHealthy = false
	} else {
		rpcInfo.Signer = signer.Hex()
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status   string      `json:"status"`
		RPC      interface{} `json:"rpc"`
		Database interface{} `json:"database"`
	}{
		Status:   status,
		RPC:      rpcInfo,
		Database: dbInfo,
	}

	code := http.StatusOK
	if !overallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type ctxKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(ctxKey{}).(string); ok {
		return id
	}
	return r.Header.Get("X-Request-Id")
}
