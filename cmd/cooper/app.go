package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/cooper/internal/api"
	"github.com/mmynk/cooper/internal/auth"
	"github.com/mmynk/cooper/internal/config"
	"github.com/mmynk/cooper/internal/metrics"
	"github.com/mmynk/cooper/internal/milestone"
	"github.com/mmynk/cooper/internal/payment"
	"github.com/mmynk/cooper/internal/refund"
	"github.com/mmynk/cooper/internal/rules"
	"github.com/mmynk/cooper/internal/service"
	"github.com/mmynk/cooper/internal/storage/sqlite"
	"github.com/mmynk/cooper/internal/sweep"
	"github.com/mmynk/cooper/internal/voting"
)

// app holds the wired components shared by serve and sweep.
type app struct {
	store   *sqlite.SQLiteStore
	metrics *metrics.Metrics
	api     *api.Server
	sweeper *sweep.Runner
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	provider := payment.NewClient(payment.ClientConfig{
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		Currency:        cfg.Provider.Currency,
		Timeout:         cfg.Provider.Timeout,
		BreakerFailures: cfg.Provider.BreakerFailures,
		BreakerCooldown: cfg.Provider.BreakerCooldown,
		Metrics:         m,
	})

	votes := voting.NewEngine(store)
	ruleEngine := rules.NewEngine(votes)
	releases := milestone.NewEngine(store, provider,
		milestone.WithLease(cfg.ReleaseLease),
		milestone.WithMetrics(m),
	)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	server := api.New(api.Config{
		Auth:       service.NewAuthService(auth.NewPasswordAuthenticator(store, bcrypt.DefaultCost), jwtManager, store, slog.Default().With("component", "auth")),
		Events:     service.NewEventService(store, votes, ruleEngine, m),
		Expenses:   service.NewExpenseService(store, ruleEngine, provider, m),
		Milestones: service.NewMilestoneService(store, releases),
		Refunds:    service.NewRefundService(store),
		JWT:        jwtManager,
		Health:     store,
		Metrics:    m,
		CORSOrigin: cfg.CORSOrigin,
	})

	return &app{
		store:   store,
		metrics: m,
		api:     server,
		sweeper: sweep.NewRunner(refund.NewSweeper(store, m), releases, cfg.SweepInterval, cfg.SweepBatch),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
