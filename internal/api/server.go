// Package api exposes Cooper's services as a JSON REST API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/mmynk/cooper/internal/auth"
	"github.com/mmynk/cooper/internal/metrics"
	"github.com/mmynk/cooper/internal/middleware"
	"github.com/mmynk/cooper/internal/service"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the collaborators of the HTTP layer.
type Config struct {
	Auth       *service.AuthService
	Events     *service.EventService
	Expenses   *service.ExpenseService
	Milestones *service.MilestoneService
	Refunds    *service.RefundService
	JWT        *auth.JWTManager
	Health     Pinger
	Metrics    *metrics.Metrics
	CORSOrigin string
}

// Server routes HTTP requests to the services.
type Server struct {
	cfg Config
}

// New creates the API server.
func New(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// Handler returns the root handler with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(s.cfg.JWT, h)
	}

	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.Handle("GET /auth/me", authed(s.me))

	mux.Handle("POST /events", authed(s.createEvent))
	mux.Handle("GET /events/{eventID}", authed(s.getEvent))
	mux.Handle("GET /users/me/events", authed(s.listMyEvents))
	mux.Handle("POST /events/{eventID}/join", authed(s.joinEvent))
	mux.Handle("POST /events/{eventID}/participants", authed(s.addParticipant))

	mux.Handle("POST /events/{eventID}/categories", authed(s.createCategory))
	mux.Handle("GET /events/{eventID}/categories", authed(s.listCategories))
	mux.Handle("POST /categories/{categoryID}/join", authed(s.joinCategory))

	mux.Handle("POST /events/{eventID}/expenses", authed(s.createExpense))
	mux.Handle("GET /events/{eventID}/expenses", authed(s.listExpenses))
	mux.Handle("GET /events/{eventID}/expenses/chart", authed(s.expenseChart))

	mux.Handle("POST /events/{eventID}/pool/deposits", authed(s.deposit))
	mux.Handle("GET /events/{eventID}/pool", authed(s.getPool))

	mux.Handle("POST /events/{eventID}/votes", authed(s.castVote))
	mux.Handle("GET /events/{eventID}/approvals/{userID}", authed(s.getApproval))

	mux.Handle("PUT /events/{eventID}/rule", authed(s.putRule))
	mux.Handle("GET /events/{eventID}/rule", authed(s.getRule))

	mux.Handle("GET /events/{eventID}/settlement", authed(s.getSettlement))
	mux.Handle("GET /payments/{intentID}/status", authed(s.paymentStatus))

	mux.Handle("GET /milestones/{milestoneID}", authed(s.getMilestone))
	mux.Handle("POST /milestones/{milestoneID}/bill", authed(s.uploadBill))
	mux.Handle("POST /milestones/{milestoneID}/approve", authed(s.approveMilestone))
	mux.Handle("POST /milestones/{milestoneID}/release", authed(s.releaseMilestone))

	mux.Handle("POST /refunds", authed(s.scheduleRefund))
	mux.Handle("GET /users/me/wallet", authed(s.getWallet))

	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", s.cfg.Metrics.Handler())

	return middleware.Logging(s.cfg.Metrics, middleware.CORS(s.cfg.CORSOrigin, mux))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
