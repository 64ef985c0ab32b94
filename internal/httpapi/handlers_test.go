package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/config"
	"ha-sip-bridge/internal/hass"
	"ha-sip-bridge/internal/supervisor"
	"ha-sip-bridge/internal/talk"

	"github.com/gin-gonic/gin"
)

type fakeSupervisor struct {
	mu       sync.Mutex
	inputs   []any
	stdinErr error
	restarts int
}

func (f *fakeSupervisor) AddonStdin(_ context.Context, _ string, input any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return f.stdinErr
}

func (f *fakeSupervisor) AddonInfo(_ context.Context, slug string) (supervisor.AddonInfo, error) {
	return supervisor.AddonInfo{Slug: slug, State: "started"}, nil
}

func (f *fakeSupervisor) RestartAddon(context.Context, string) error {
	f.restarts++
	return nil
}

type testEnv struct {
	r     *gin.Engine
	hass  *hass.Hass
	auth  *auth.Manager
	sup   *fakeSupervisor
	entry *talk.Entry
}

func newEnv(t *testing.T, limit *IPRateLimiter) *testEnv {
	t.Helper()
	return newEnvWithHealth(t, limit, nil)
}

func newEnvWithHealth(t *testing.T, limit *IPRateLimiter, checks map[string]HealthCheck) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	h := hass.New(nil, nil)
	sup := &fakeSupervisor{}
	aud := audit.NewService(audit.NewMemoryRepo(), nil)
	entry, err := talk.Setup(context.Background(), h, talk.Config{EntryID: "e1", WebhookID: "hook"}, sup, aud)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	r := gin.New()
	Register(r, Handlers{
		Hass:            h,
		Auth:            m,
		Addon:           sup,
		AddonSlug:       "c7744bff_ha-sip",
		BootstrapSecret: "boot",
		Audit:           aud,
		EntryID:         "e1",
		Health:          checks,
	}, limit)
	return &testEnv{r: r, hass: h, auth: m, sup: sup, entry: entry}
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	pair, err := e.auth.IssuePair(time.Now(), "tester", role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair.AccessToken
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestWebhook_MergesAndReturnsEmpty200(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(http.MethodPost, "/api/webhook/hook", `{"event":"incoming_call","caller":"alice"}`, "")
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("expected empty 200, got %d %q", w.Code, w.Body.String())
	}
	if ev := env.entry.Snapshot().Event; ev == nil || *ev != "incoming_call" {
		t.Fatalf("state not merged: %v", ev)
	}
}

func TestWebhook_MalformedAndUnknown(t *testing.T) {
	env := newEnv(t, nil)

	if w := env.do(http.MethodPost, "/api/webhook/hook", `[1,2]`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/webhook/nope", `{}`, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestWebhook_RateLimited(t *testing.T) {
	limit := NewIPRateLimiter(RateLimitConfig{Rate: 0.001, Burst: 1})
	defer limit.Stop()
	env := newEnv(t, limit)

	if w := env.do(http.MethodPost, "/api/webhook/hook", `{}`, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/webhook/hook", `{}`, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestCallService_StatusMapping(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "user")

	w := env.do(http.MethodPost, "/api/services/hacs_unifi_talk/dial", `{"number":"1001"}`, tok)
	if w.Code != http.StatusOK || len(env.sup.inputs) != 1 {
		t.Fatalf("expected 200 and one write, got %d (%d writes)", w.Code, len(env.sup.inputs))
	}

	w = env.do(http.MethodPost, "/api/services/hacs_unifi_talk/send_dtmf", `{"number":"1","digits":"1","method":"x"}`, tok)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["field"] != "method" {
		t.Fatalf("expected field=method, got %s", w.Body.String())
	}

	if w := env.do(http.MethodPost, "/api/services/hacs_unifi_talk/reboot", `{}`, tok); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	env.sup.stdinErr = errors.New("supervisor down")
	if w := env.do(http.MethodPost, "/api/services/hacs_unifi_talk/hangup", `{"number":"1"}`, tok); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestCallService_RequiresTokenAndRole(t *testing.T) {
	env := newEnv(t, nil)

	if w := env.do(http.MethodPost, "/api/services/hacs_unifi_talk/dial", `{"number":"1"}`, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/services/hacs_unifi_talk/dial", `{"number":"1"}`, env.token(t, "read_only")); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestStates(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "read_only")

	w := env.do(http.MethodGet, "/api/states/sensor.unifi_talk_last_call", "", tok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var st hass.State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || st.State != "idle" {
		t.Fatalf("unexpected state %s", w.Body.String())
	}
	if w := env.do(http.MethodGet, "/api/states/sensor.nope", "", tok); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/states", "", tok); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAddon_AdminOnly(t *testing.T) {
	env := newEnv(t, nil)

	if w := env.do(http.MethodPost, "/api/addon/restart", "", env.token(t, "user")); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/addon/restart", "", env.token(t, "admin")); w.Code != http.StatusOK || env.sup.restarts != 1 {
		t.Fatalf("expected restart, got %d (%d)", w.Code, env.sup.restarts)
	}
	if w := env.do(http.MethodGet, "/api/addon/info", "", env.token(t, "admin")); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "c7744bff_ha-sip") {
		t.Fatalf("unexpected info %d %s", w.Code, w.Body.String())
	}
}

func TestAudit_ListsWebhookAndCommand(t *testing.T) {
	env := newEnv(t, nil)
	env.do(http.MethodPost, "/api/webhook/hook", `{"event":"incoming_call","internal_id":"42"}`, "")
	env.do(http.MethodPost, "/api/services/hacs_unifi_talk/answer", `{"number":"42"}`, env.token(t, "user"))

	w := env.do(http.MethodGet, "/api/audit?limit=10", "", env.token(t, "admin"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Events []audit.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 2 || body.Events[0].Action != "answer" || body.Events[0].ActorUserID != "tester" {
		t.Fatalf("unexpected events %+v", body.Events)
	}
	if body.Events[1].Type != audit.EventTypeWebhook || body.Events[1].Target != "42" {
		t.Fatalf("unexpected webhook event %+v", body.Events[1])
	}
	if w := env.do(http.MethodGet, "/api/audit?limit=0", "", env.token(t, "admin")); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestIssueToken(t *testing.T) {
	env := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"user_id":"nodered","role":"user"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"user_id":"nodered","role":"user"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerBootstrapSecret, "boot")
	w = httptest.NewRecorder()
	env.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil || pair.AccessToken == "" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if _, err := env.auth.Verify(pair.AccessToken, auth.TokenTypeAccess, time.Now()); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{Rate: 1, Burst: 1, MaxAge: time.Minute})
	defer rl.Stop()
	rl.Allow("10.0.0.1")
	if n := rl.cleanup(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 evicted entry, got %d", n)
	}
}

func TestHealthz_ReportsBackendChecks(t *testing.T) {
	env := newEnvWithHealth(t, nil, map[string]HealthCheck{
		"audit_db":      func(context.Context) error { return nil },
		"event_publish": func(context.Context) error { return errors.New("redis ping failed") },
	})

	w := env.do(http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Checks["audit_db"] != "ok" || body.Checks["event_publish"] != "redis ping failed" {
		t.Fatalf("unexpected body %+v", body)
	}

	if w := newEnv(t, nil).do(http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 without checks, got %d", w.Code)
	}
}

func TestRefreshToken_KeepsRole(t *testing.T) {
	env := newEnv(t, nil)
	pair, err := env.auth.IssuePair(time.Now(), "nodered", "read_only")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := env.do(http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`","role":"admin"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var next auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &next); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := env.auth.Verify(next.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "nodered" || claims.Role != "read_only" {
		t.Fatalf("refresh changed identity: %+v", claims)
	}

	if w := env.do(http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for access token, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/auth/refresh", `{}`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
