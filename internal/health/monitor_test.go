package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"data":{"__typename":"Query"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func slowServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestCheckAllMixedReachability(t *testing.T) {
	endpoints := []domain.ServiceEndpoint{
		{Name: "users", URL: statusServer(t, http.StatusOK).URL, Timeout: time.Second},
		{Name: "orders", URL: statusServer(t, http.StatusInternalServerError).URL, Timeout: time.Second},
		{Name: "catalog", URL: slowServer(t, 2*time.Second).URL, Timeout: 50 * time.Millisecond},
		{Name: "billing", URL: statusServer(t, http.StatusNoContent).URL, Timeout: time.Second},
		{Name: "search", URL: closedURL(t), Timeout: time.Second},
	}
	m := NewMonitor(endpoints, logger.NewNop())

	start := time.Now()
	statuses := m.CheckAll(context.Background())
	assert.Less(t, time.Since(start), time.Second, "slow endpoint must not hold up the rest")

	require.Len(t, statuses, len(endpoints))
	for i, ep := range endpoints {
		assert.Equal(t, ep.Name, statuses[i].Name, "results keep configuration order")
		assert.False(t, statuses[i].LastCheckedAt.IsZero())
	}

	available, unavailable := domain.SplitByReachability(statuses)
	assert.Equal(t, []string{"users", "billing"}, available)
	assert.Equal(t, []string{"orders", "catalog", "search"}, unavailable)

	for _, s := range statuses {
		if s.Reachable {
			assert.Empty(t, s.LastError)
		} else {
			assert.NotEmpty(t, s.LastError)
		}
	}
	assert.Equal(t, statuses, m.Statuses())
	assert.False(t, m.LastCheck().IsZero())
}

func TestCheckAllRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m := NewMonitor([]domain.ServiceEndpoint{
		{Name: "flaky", URL: srv.URL, Timeout: time.Second, MaxRetries: 1},
	}, logger.NewNop())

	statuses := m.CheckAll(context.Background())
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Reachable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCheckAllNoEndpoints(t *testing.T) {
	m := NewMonitor(nil, logger.NewNop())
	assert.Empty(t, m.CheckAll(context.Background()))
}

func TestCheckAllSlowEndpointsDoNotDelayOthers(t *testing.T) {
	var firstContact atomic.Int64
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firstContact.CompareAndSwap(0, time.Now().UnixNano())
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(fast.Close)

	slow := slowServer(t, 5*time.Second)
	var endpoints []domain.ServiceEndpoint
	for range 12 {
		endpoints = append(endpoints, domain.ServiceEndpoint{
			Name: "slow", URL: slow.URL, Timeout: 300 * time.Millisecond,
		})
	}
	endpoints = append(endpoints, domain.ServiceEndpoint{Name: "fast", URL: fast.URL, Timeout: time.Second})

	m := NewMonitor(endpoints, logger.NewNop())
	start := time.Now()
	results := m.CheckAll(context.Background())

	require.Len(t, results, 13)
	assert.True(t, results[12].Reachable)
	require.NotZero(t, firstContact.Load())
	assert.Less(t, time.Duration(firstContact.Load()-start.UnixNano()), 200*time.Millisecond,
		"fast endpoint waited for a probe slot")
	assert.Less(t, time.Since(start), time.Second)
}

func TestFailureLogCapAndRecovery(t *testing.T) {
	var up atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if up.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.InfoLevel)
	m := NewMonitor([]domain.ServiceEndpoint{
		{Name: "users", URL: srv.URL, Timeout: time.Second},
	}, logger.FromZap(zap.New(core)), WithFailureLogCap(2))

	for i := 0; i < 5; i++ {
		m.CheckAll(context.Background())
	}
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len(), "failure logs are capped")

	up.Store(true)
	m.CheckAll(context.Background())
	recovered := logs.FilterMessage("service recovered").All()
	require.Len(t, recovered, 1)
	assert.Equal(t, int64(5), recovered[0].ContextMap()["failed_checks"])

	up.Store(false)
	m.CheckAll(context.Background())
	assert.Equal(t, 3, logs.FilterLevelExact(zapcore.WarnLevel).Len(), "logging resumes after recovery")
}

type probeCounter struct {
	reachable, unreachable atomic.Int32
}

func (p *probeCounter) ObserveProbe(_ string, reachable bool, _ time.Duration) {
	if reachable {
		p.reachable.Add(1)
		return
	}
	p.unreachable.Add(1)
}

func TestCheckAllRecordsProbes(t *testing.T) {
	rec := &probeCounter{}
	m := NewMonitor([]domain.ServiceEndpoint{
		{Name: "a", URL: statusServer(t, http.StatusOK).URL},
		{Name: "b", URL: closedURL(t)},
	}, logger.NewNop(), WithRecorder(rec), WithConcurrency(1))

	m.CheckAll(context.Background())
	assert.Equal(t, int32(1), rec.reachable.Load())
	assert.Equal(t, int32(1), rec.unreachable.Load())
}
