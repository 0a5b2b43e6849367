package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/cooper/internal/auth"
	"github.com/mmynk/cooper/internal/metrics"
	"github.com/mmynk/cooper/internal/milestone"
	"github.com/mmynk/cooper/internal/payment"
	"github.com/mmynk/cooper/internal/rules"
	"github.com/mmynk/cooper/internal/service"
	"github.com/mmynk/cooper/internal/storage/sqlite"
	"github.com/mmynk/cooper/internal/voting"
)

type stubProvider struct {
	mu        sync.Mutex
	n         int
	createErr error
}

func (p *stubProvider) CreateIntent(ctx context.Context, amount decimal.Decimal) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.n++
	id := fmt.Sprintf("pi_%d", p.n)
	return &payment.Intent{ID: id, Status: "INITIATED", PaymentURL: "https://pay.example/" + id, Amount: amount}, nil
}

func (p *stubProvider) failCreate(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createErr = err
}

func (p *stubProvider) GetIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	return &payment.Intent{ID: intentID, Status: "SUCCEEDED"}, nil
}

func (p *stubProvider) ReleaseIntent(ctx context.Context, intentID string) error { return nil }

type client struct {
	t   *testing.T
	url string
}

func (c *client) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.url+path, reader)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func (c *client) register(name string) (token, userID string) {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": name + "@example.com", "password": "password123", "display_name": name,
	})
	require.Equal(c.t, http.StatusCreated, status, body)
	return body["token"].(string), body["user"].(map[string]any)["id"].(string)
}

func setup(t *testing.T) (*client, *stubProvider) {
	t.Helper()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New(prometheus.NewRegistry())
	provider := &stubProvider{}
	votes := voting.NewEngine(store)
	ruleEngine := rules.NewEngine(votes)
	jwt := auth.NewJWTManager("test-secret", time.Hour)

	srv := New(Config{
		Auth:       service.NewAuthService(auth.NewPasswordAuthenticator(store, bcrypt.MinCost), jwt, store, slog.Default()),
		Events:     service.NewEventService(store, votes, ruleEngine, m),
		Expenses:   service.NewExpenseService(store, ruleEngine, provider, m),
		Milestones: service.NewMilestoneService(store, milestone.NewEngine(store, provider, milestone.WithMetrics(m))),
		Refunds:    service.NewRefundService(store),
		JWT:        jwt,
		Health:     store,
		Metrics:    m,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &client{t: t, url: ts.URL}, provider
}

func TestAuthEndpoints(t *testing.T) {
	c, _ := setup(t)

	token, userID := c.register("alice")

	status, body := c.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, userID, body["id"])

	status, body = c.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", body["code"])

	status, _ = c.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = c.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	status, _ = c.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = c.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "x", "unknown": true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_argument", body["code"])
}

func TestEventLifecycle(t *testing.T) {
	c, provider := setup(t)

	adminToken, adminID := c.register("admin")
	bobToken, bobID := c.register("bob")
	carolToken, _ := c.register("carol")

	status, body := c.do(http.MethodPost, "/events", adminToken, map[string]string{"title": "Ski trip"})
	require.Equal(t, http.StatusCreated, status, body)
	eventID := body["id"].(string)
	assert.Equal(t, adminID, body["admin_user_id"])

	status, _ = c.do(http.MethodPost, "/events/"+eventID+"/join", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodPost, "/events/"+eventID+"/join", bobToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = c.do(http.MethodPost, "/events/"+eventID+"/participants", bobToken, map[string]string{"email": "carol@example.com"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = c.do(http.MethodPost, "/events/"+eventID+"/participants", adminToken, map[string]string{"email": "carol@example.com"})
	require.Equal(t, http.StatusCreated, status)

	status, body = c.do(http.MethodGet, "/events/"+eventID, carolToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["participants"], 3)

	status, body = c.do(http.MethodGet, "/users/me/events", carolToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["events"], 1)

	status, body = c.do(http.MethodPost, "/events/"+eventID+"/categories", adminToken, map[string]string{"name": "Lift passes"})
	require.Equal(t, http.StatusCreated, status)
	categoryID := body["id"].(string)

	// Rule: expenses above 100 need approval.
	status, body = c.do(http.MethodPut, "/events/"+eventID+"/rule", adminToken, map[string]any{
		"max_amount": "100", "approval_required": true,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "100", body["max_amount"])

	status, _ = c.do(http.MethodPut, "/events/"+eventID+"/rule", bobToken, map[string]any{"admin_only": true})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = c.do(http.MethodPost, "/events/"+eventID+"/expenses", bobToken, map[string]any{
		"category_id": categoryID, "amount": "150",
	})
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "rule_violation", body["code"])
	assert.Equal(t, rules.ReasonApprovalRequired, body["reason"])

	for _, tok := range []string{adminToken, carolToken} {
		status, body = c.do(http.MethodPost, "/events/"+eventID+"/votes", tok, map[string]any{
			"target_user_id": bobID, "approve": true,
		})
		require.Equal(t, http.StatusOK, status, body)
	}
	assert.Equal(t, true, body["approved"])
	assert.EqualValues(t, 2, body["approvals"])

	status, body = c.do(http.MethodGet, "/events/"+eventID+"/approvals/"+bobID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["participants"])

	status, body = c.do(http.MethodPost, "/events/"+eventID+"/expenses", bobToken, map[string]any{
		"category_id": categoryID, "amount": "150",
	})
	require.Equal(t, http.StatusCreated, status, body)
	milestoneID := body["milestone_id"].(string)
	assert.NotEmpty(t, body["payment_url"])
	assert.Equal(t, "150", body["expense"].(map[string]any)["amount"])

	// The approval gate applies to the admin too.
	status, body = c.do(http.MethodPost, "/events/"+eventID+"/expenses", adminToken, map[string]any{
		"category_id": categoryID, "amount": 150,
	})
	require.Equal(t, http.StatusForbidden, status, body)
	assert.Equal(t, rules.ReasonApprovalRequired, body["reason"])

	for _, tok := range []string{bobToken, carolToken} {
		status, body = c.do(http.MethodPost, "/events/"+eventID+"/votes", tok, map[string]any{
			"target_user_id": adminID, "approve": true,
		})
		require.Equal(t, http.StatusOK, status, body)
	}
	assert.Equal(t, true, body["approved"])

	status, body = c.do(http.MethodPost, "/events/"+eventID+"/expenses", adminToken, map[string]any{
		"category_id": categoryID, "amount": 150,
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = c.do(http.MethodGet, "/events/"+eventID+"/settlement", carolToken, nil)
	require.Equal(t, http.StatusOK, status)
	balances := body["balances"].([]any)
	require.Len(t, balances, 3)
	for _, b := range balances {
		assert.Equal(t, "-100.00", b.(map[string]any)["net_balance"])
	}

	status, body = c.do(http.MethodGet, "/events/"+eventID+"/expenses/chart", carolToken, nil)
	require.Equal(t, http.StatusOK, status)
	chart := body["categories"].([]any)
	require.Len(t, chart, 1)
	assert.Equal(t, "300", chart[0].(map[string]any)["amount"])

	// Milestone: bob uploads the bill, admin approves, funds are released.
	status, body = c.do(http.MethodPost, "/milestones/"+milestoneID+"/bill", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bill_in", body["state"])

	status, _ = c.do(http.MethodPost, "/milestones/"+milestoneID+"/approve", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = c.do(http.MethodPost, "/milestones/"+milestoneID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "released", body["state"])

	status, body = c.do(http.MethodPost, "/milestones/"+milestoneID+"/release", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["released_now"])

	// Provider outage surfaces as 503 with Retry-After.
	provider.failCreate(&payment.Error{Op: "create", Err: errors.New("timeout")})
	status, body = c.do(http.MethodPost, "/events/"+eventID+"/pool/deposits", carolToken, map[string]any{"amount": "20"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "provider_unavailable", body["code"])

	provider.failCreate(&payment.Error{Op: "create", StatusCode: http.StatusBadRequest, Err: errors.New("bad currency")})
	status, _ = c.do(http.MethodPost, "/events/"+eventID+"/pool/deposits", carolToken, map[string]any{"amount": "20"})
	assert.Equal(t, http.StatusBadGateway, status)

	provider.failCreate(nil)
	for _, a := range []string{"50", "30"} {
		status, _ = c.do(http.MethodPost, "/events/"+eventID+"/pool/deposits", carolToken, map[string]any{"amount": a})
		require.Equal(t, http.StatusCreated, status)
	}
	status, body = c.do(http.MethodGet, "/events/"+eventID+"/pool", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "80", body["total_pool"])
	assert.Len(t, body["contributors"], 2)
}

func TestRefundEndpoints(t *testing.T) {
	c, _ := setup(t)
	adminToken, _ := c.register("admin")
	bobToken, bobID := c.register("bob")

	_, body := c.do(http.MethodPost, "/events", adminToken, map[string]string{"title": "Dinner"})
	eventID := body["id"].(string)
	status, _ := c.do(http.MethodPost, "/events/"+eventID+"/join", bobToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = c.do(http.MethodPost, "/refunds", adminToken, map[string]any{
		"event_id": eventID, "user_id": bobID, "amount": "9.99", "release_at": time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = c.do(http.MethodGet, "/users/me/wallet", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0", body["balance"])
	assert.Len(t, body["pending_refunds"], 1)
}

func TestOpsEndpoints(t *testing.T) {
	c, _ := setup(t)

	status, body := c.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(c.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "cooper_http_request_duration_seconds")

	status, body = c.do(http.MethodGet, "/events/missing", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", body["code"])
}
