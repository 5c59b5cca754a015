package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/infra/logging"
	"github.com/mehran-shabani/Apatie/internal/infra/metrics"
	"github.com/mehran-shabani/Apatie/internal/usecase"
)

// Server wires the payment and subscription use cases to HTTP.
type Server struct {
	payUC usecase.PaymentUseCase
	recUC usecase.ReconcileUseCase
	subUC usecase.SubscriptionUseCase
	auth  *AuthManager
	log   *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	recUC usecase.ReconcileUseCase,
	subUC usecase.SubscriptionUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "API").Logger()
	return &Server{payUC: payUC, recUC: recUC, subUC: subUC, auth: auth, log: &l}
}

// Router builds the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID)
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Zibal redirects the payer's browser here with GET; server-to-server
		// notifications arrive as POST. Both run the same verification.
		r.Get("/payments/callback", s.handleCallback)
		r.Post("/payments/callback", s.handleCallback)

		r.Post("/subscriptions/start", s.handleStartSubscription)
		r.Get("/users/{userID}/subscription", s.handleActiveSubscription)

		r.Post("/payments", s.handleCreatePayment)
		r.Post("/payments/{orderID}/start", s.handleStartPayment)
		r.Get("/payments/{orderID}", s.handleGetPayment)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Post("/admin/reconcile", s.handleAdminReconcile)
		})
	})
	return r
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	raw := r.URL.Query().Get("trackId")
	if raw == "" && r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			raw = r.PostForm.Get("trackId")
		}
	}
	trackID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || trackID <= 0 {
		metrics.IncCallback("rejected", "missing_track_id")
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	ctx := logging.WithTrackID(r.Context(), trackID)
	out, err := s.payUC.HandleCallback(ctx, trackID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncCallback("rejected", "unknown_track_id")
			writeError(w, http.StatusNotFound, "unknown transaction")
			return
		}
		logging.With(ctx, s.log).Error().Err(err).Msg("callback processing failed")
		metrics.IncCallback("error", "internal")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.IncCallback(string(out.Status), "")
	metrics.ObserveCallbackDuration(string(out.Status), time.Since(start).Seconds())
	if out.Finalized {
		metrics.IncPayment(string(out.Status))
		if out.Paid() {
			metrics.AddPaymentRevenue(string(out.Purpose), out.AmountIRR)
			if out.SubscriptionID != "" {
				metrics.IncSubscriptionActivated(string(model.PlanTypeBusiness))
			}
		}
	}

	// Browsers get sent back to the storefront; API callers get the outcome.
	if r.Method == http.MethodGet && out.Redirect != "" {
		http.Redirect(w, r, out.Redirect, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, callbackResponse(out))
}

type startSubscriptionRequest struct {
	UserID   string  `json:"user_id"`
	VendorID *string `json:"vendor_id,omitempty"`
	PlanType string  `json:"plan_type,omitempty"`
	Months   int     `json:"months"`
	Mobile   string  `json:"mobile,omitempty"`
}

func (s *Server) handleStartSubscription(w http.ResponseWriter, r *http.Request) {
	var req startSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.payUC.StartSubscription(r.Context(), usecase.StartSubscriptionInput{
		UserID:   req.UserID,
		VendorID: req.VendorID,
		PlanType: model.PlanType(req.PlanType),
		Months:   req.Months,
		Mobile:   req.Mobile,
	})
	if err != nil {
		s.writeUCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse(res))
}

type createPaymentRequest struct {
	UserID    string                 `json:"user_id"`
	VendorID  *string                `json:"vendor_id,omitempty"`
	Purpose   string                 `json:"purpose"`
	AmountIRR int64                  `json:"amount_irr"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	txn, err := s.payUC.CreateTransaction(r.Context(), usecase.CreateTransactionInput{
		UserID:    req.UserID,
		VendorID:  req.VendorID,
		Purpose:   model.PaymentPurpose(req.Purpose),
		AmountIRR: req.AmountIRR,
		Meta:      req.Meta,
	})
	if err != nil {
		s.writeUCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionResponse(txn))
}

type startPaymentRequest struct {
	Mobile      string `json:"mobile,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleStartPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req startPaymentRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	res, err := s.payUC.StartPayment(logging.WithOrderID(r.Context(), orderID), orderID, req.Mobile, req.Description)
	if err != nil {
		s.writeUCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse(res))
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	txn, err := s.payUC.GetTransaction(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeUCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse(txn))
}

func (s *Server) handleActiveSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.ActiveSubscription(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeUCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse(sub))
}

type adminReconcileRequest struct {
	LookbackHours int    `json:"lookback_hours,omitempty"`
	TrackID       *int64 `json:"track_id,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

func (s *Server) handleAdminReconcile(w http.ResponseWriter, r *http.Request) {
	var req adminReconcileRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	opts := usecase.ReconcileOptions{
		Lookback: time.Duration(req.LookbackHours) * time.Hour,
		TrackID:  req.TrackID,
		DryRun:   req.DryRun,
		Limit:    req.Limit,
	}
	sum, err := s.recUC.Run(r.Context(), opts)
	if err != nil {
		s.writeUCError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse(sum))
}

func (s *Server) writeUCError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid argument")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrTerminalStatus):
		writeError(w, http.StatusConflict, "transaction is not in a startable state")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
