package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/portico/internal/auth"
	"github.com/MrSnakeDoc/portico/internal/cache"
	"github.com/MrSnakeDoc/portico/internal/compose"
	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/logger"
	"github.com/MrSnakeDoc/portico/internal/observability"
	"github.com/MrSnakeDoc/portico/internal/readiness"
)

const (
	opaqueCredential = "17|opaque-token"
	signedCredential = "header.payload.signature"
)

type stubLocal struct{}

func (stubLocal) Validate(credential string) (domain.Identity, error) {
	if credential != signedCredential {
		return domain.Identity{}, auth.ErrInvalidSignature
	}
	return domain.Identity{ID: "u-1", Email: "u1@example.com", Role: "admin", Roles: []string{"ops"}}, nil
}

// stubRemote mimics RemoteValidator on top of a real cache.
type stubRemote struct {
	cache *cache.ValidationCache
}

func (s stubRemote) Validate(_ context.Context, credential string) (domain.Identity, error) {
	if credential != opaqueCredential {
		return domain.Identity{}, auth.ErrRemoteRejected
	}
	id := domain.Identity{ID: "17", Email: "r@example.com"}
	s.cache.Put(cache.Key(credential), id, time.Hour)
	return id, nil
}

func (s stubRemote) Invalidate(credential string) {
	s.cache.Invalidate(cache.Key(credential))
}

type fakeSupergraph struct {
	sg compose.Supergraph
	ok bool
}

func (f fakeSupergraph) Current() (compose.Supergraph, bool) { return f.sg, f.ok }

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

type fixture struct {
	deps      deps.Deps
	machine   *readiness.Machine
	cache     *cache.ValidationCache
	publisher *recordingPublisher
	engine    *httptest.Server
	engineReq chan *http.Request
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		machine:   readiness.NewMachine(2, logger.NewNop()),
		cache:     cache.NewValidationCache(),
		publisher: &recordingPublisher{},
		engineReq: make(chan *http.Request, 1),
	}

	f.engine = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.engineReq <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	t.Cleanup(f.engine.Close)
	engineURL, err := url.Parse(f.engine.URL + "/graphql")
	require.NoError(t, err)

	remote := stubRemote{cache: f.cache}
	f.deps = deps.Deps{
		Logger:             logger.NewNop(),
		StartTime:          time.Now(),
		Version:            "test",
		InstanceID:         "gw-test",
		RateLimitPerMin:    1000,
		Gate:               auth.NewGate(stubLocal{}, remote, logger.NewNop()),
		Credentials:        remote,
		Revocations:        f.publisher,
		Cache:              f.cache,
		Readiness:          f.machine,
		Supergraph:         fakeSupergraph{},
		EngineURL:          engineURL,
		Metrics:            observability.NewMetrics(),
		HealthCheckTrigger: make(chan struct{}, 1),
	}
	f.rebuild()
	return f
}

func (f *fixture) rebuild() {
	f.handler, _ = NewRouter(f.deps)
}

func (f *fixture) do(method, path, authz string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(`{"query":"{ ok }"}`))
	if authz != "" {
		r.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func (f *fixture) makeReady() {
	f.machine.Begin()
	f.machine.SchemaComposed()
	f.machine.ServerStarted()
}

func TestHealthAlwaysOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHealthDetailedReport(t *testing.T) {
	f := newFixture(t)
	f.machine.Begin()
	f.machine.UpdateServices([]domain.ServiceHealthStatus{
		{Name: "a", Reachable: false},
		{Name: "b", Reachable: true},
	})

	rec := f.do(http.MethodGet, "/health/detailed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SchemaReady   bool   `json:"schemaReady"`
		ServerStarted bool   `json:"serverStarted"`
		State         string `json:"state"`
		Services      struct {
			Available       []string `json:"available"`
			Unavailable     []string `json:"unavailable"`
			TotalConfigured int      `json:"totalConfigured"`
		} `json:"services"`
		AllHealthy       bool   `json:"allHealthy"`
		PartiallyHealthy bool   `json:"partiallyHealthy"`
		ReadyForRequests bool   `json:"readyForRequests"`
		InstanceID       string `json:"instanceId"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, []string{"b"}, body.Services.Available)
	assert.Equal(t, []string{"a"}, body.Services.Unavailable)
	assert.Equal(t, 2, body.Services.TotalConfigured)
	assert.False(t, body.AllHealthy)
	assert.True(t, body.PartiallyHealthy)
	assert.False(t, body.SchemaReady)
	assert.False(t, body.ReadyForRequests)
	assert.Equal(t, "starting", body.State)
	assert.Equal(t, "gw-test", body.InstanceID)
}

func TestReadyzGating(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/readyz", "").Code)

	f.makeReady()
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "").Code)
}

func TestProxyNotReady(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/graphql", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestProxyForwardsIdentity(t *testing.T) {
	f := newFixture(t)
	f.makeReady()

	r := httptest.NewRequest(http.MethodPost, "/graphql?op=1", strings.NewReader(`{"query":"{ ok }"}`))
	r.Header.Set("Authorization", "Bearer "+signedCredential)
	r.Header.Set("X-User-Id", "spoofed")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `{"data":{"ok":true}}`, string(body))

	got := <-f.engineReq
	assert.Equal(t, "/graphql", got.URL.Path)
	assert.Equal(t, "op=1", got.URL.RawQuery)
	assert.Equal(t, "u-1", got.Header.Get("X-User-Id"))
	assert.Equal(t, "u1@example.com", got.Header.Get("X-User-Email"))
	assert.Equal(t, "admin", got.Header.Get("X-User-Role"))
	assert.Equal(t, "admin,ops", got.Header.Get("X-User-Roles"))
}

func TestProxyStripsSpoofedIdentityForAnonymous(t *testing.T) {
	f := newFixture(t)
	f.makeReady()

	r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	r.Header.Set("Authorization", "Bearer bogus")
	r.Header.Set("X-User-Id", "spoofed")
	r.Header.Set("X-User-Role", "admin")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	got := <-f.engineReq
	assert.Empty(t, got.Header.Get("X-User-Id"))
	assert.Empty(t, got.Header.Get("X-User-Role"))
}

func TestProxyEngineDown(t *testing.T) {
	f := newFixture(t)
	f.makeReady()
	f.engine.Close()

	rec := f.do(http.MethodPost, "/graphql", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/auth/logout", "").Code)

	rec := f.do(http.MethodPost, "/auth/logout", "Bearer "+opaqueCredential)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, cached := f.cache.Get(cache.Key(opaqueCredential))
	assert.False(t, cached, "logout drops the cached validation")
	assert.Equal(t, []string{cache.Key(opaqueCredential)}, f.publisher.keys)

	rec = f.do(http.MethodPost, "/auth/logout", "Bearer "+signedCredential)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, f.publisher.keys, 1, "signed tokens have nothing to revoke")
}

func TestHealthCheckTrigger(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/health/check", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/health/check", "").Code)

	<-f.deps.HealthCheckTrigger
	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/health/check", "").Code)
}

func TestSchema(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/schema", "").Code)

	f.deps.Supergraph = fakeSupergraph{ok: true, sg: compose.Supergraph{
		SDL:        "type Query { ok: Boolean }",
		ComposedAt: time.Now(),
	}}
	f.rebuild()

	rec := f.do(http.MethodGet, "/schema", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "type Query { ok: Boolean }", rec.Body.String())
}

func TestInfra(t *testing.T) {
	f := newFixture(t)
	f.cache.Put("k", domain.Identity{ID: "1"}, time.Hour)

	rec := f.do(http.MethodGet, "/infra", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			OK      bool   `json:"ok"`
			Entries *int   `json:"entries"`
			Mode    string `json:"mode"`
		} `json:"components"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, "degraded", body.Mode)
	require.NotNil(t, body.Components["validation_cache"].Entries)
	assert.Equal(t, 1, *body.Components["validation_cache"].Entries)
	assert.Equal(t, "disabled", body.Components["revocation_bus"].Mode)
}

func TestOperationalEndpointsRestricted(t *testing.T) {
	f := newFixture(t)
	f.deps.AllowedCIDRS = []string{"10.0.0.0/8"}
	f.rebuild()

	// httptest requests come from 192.0.2.1.
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/infra", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/health", "Bearer "+signedCredential)

	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portico_http_requests_total{code="200",route="/health"}`)
}
