// Package api exposes the ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-ledger/internal/models"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxBodyBytes = 1 << 20
)

// Service is the part of the ledger the HTTP layer needs.
type Service interface {
	CreateAccount(ctx context.Context, req models.CreateAccountRequest) (models.Account, error)
	GetBalance(ctx context.Context, accountID string) (models.AccountBalance, error)
	Transfer(ctx context.Context, req models.TransferRequest) (models.TransferResult, error)
	GetTransaction(ctx context.Context, txnID string) (models.TransactionDetail, error)
}

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes builds the router. metricsHandler is mounted on /metrics when non-nil.
func (h *Handler) Routes(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", h.CreateAccount)
		r.Get("/accounts/{id}/balance", h.GetBalance)
		r.Post("/transactions/transfer", h.Transfer)
		r.Get("/transactions/{id}", h.GetTransaction)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

type balanceResponse struct {
	AccountID    string    `json:"account_id"`
	Currency     string    `json:"currency"`
	BalanceCents int64     `json:"balance_cents"`
	Balance      string    `json:"balance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID:    balance.AccountID,
		Currency:     balance.Currency,
		BalanceCents: balance.BalanceCents,
		Balance:      decimal.New(balance.BalanceCents, -2).StringFixed(2),
		UpdatedAt:    balance.UpdatedAt,
	})
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" {
		writeError(w, http.StatusBadRequest, CodeMissingIdempotencyKey, "")
		return
	}

	var req models.TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.IdempotencyKey = key

	result, err := h.svc.Transfer(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if result.Replayed {
		w.Header().Set(HeaderReplayed, "true")
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, err.Error())
		return false
	}
	return true
}
