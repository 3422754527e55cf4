package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFailures struct {
	tenant   uuid.UUID
	resolved []uuid.UUID
}

func (f *fakeFailures) FindUnresolved(_ context.Context, tenantID uuid.UUID, limit int) ([]*ledger.PostingFailure, error) {
	f.tenant = tenantID
	return []*ledger.PostingFailure{
		ledger.NewPostingFailure(tenantID, uuid.New(), "inventory.StockMovementRecorded", "stock_movement", "MV-1", ledger.CodePeriodClosed, "period closed"),
	}, nil
}

func (f *fakeFailures) MarkResolved(_ context.Context, eventID uuid.UUID, _ time.Time) error {
	f.resolved = append(f.resolved, eventID)
	return nil
}

func newTestEngine(t *testing.T, checks map[string]handler.ReadinessCheck, meter *sdkmetric.MeterProvider) (*gin.Engine, *fakeFailures) {
	t.Helper()
	failures := &fakeFailures{}
	cfg := EngineConfig{ServiceName: "ledger-test", Logger: zap.NewNop()}
	if meter != nil {
		cfg.Meter = meter.Meter("http")
	}
	engine, err := NewEngine(cfg, handler.NewHealthHandler(checks), handler.NewPostingFailureHandler(failures))
	require.NoError(t, err)
	return engine, failures
}

func serve(engine *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestEngine_Health(t *testing.T) {
	engine, _ := newTestEngine(t, nil, nil)

	w := serve(engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestEngine_Ready(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		engine, _ := newTestEngine(t, map[string]handler.ReadinessCheck{
			"database": func(context.Context) error { return nil },
		}, nil)

		w := serve(engine, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("failing check answers 503", func(t *testing.T) {
		engine, _ := newTestEngine(t, map[string]handler.ReadinessCheck{
			"database":    func(context.Context) error { return nil },
			"idempotency": func(context.Context) error { return errors.New("redis down") },
		}, nil)

		w := serve(engine, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Data handler.HealthResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "unavailable", body.Data.Status)
		assert.Equal(t, "ok", body.Data.Checks["database"])
		assert.Equal(t, "redis down", body.Data.Checks["idempotency"])
	})
}

func TestEngine_PostingFailures(t *testing.T) {
	t.Run("requires a tenant header", func(t *testing.T) {
		engine, _ := newTestEngine(t, nil, nil)

		w := serve(engine, http.MethodGet, "/api/v1/ops/posting-failures", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TENANT_REQUIRED")

		w = serve(engine, http.MethodGet, "/api/v1/ops/posting-failures", http.Header{"X-Tenant-Id": {"not-a-uuid"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("lists failures of the tenant", func(t *testing.T) {
		engine, failures := newTestEngine(t, nil, nil)
		tenantID := uuid.New()

		w := serve(engine, http.MethodGet, "/api/v1/ops/posting-failures?limit=10", http.Header{"X-Tenant-Id": {tenantID.String()}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, failures.tenant)

		var body struct {
			Data []handler.PostingFailureResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, ledger.CodePeriodClosed, body.Data[0].ErrorCode)
		assert.Equal(t, "MV-1", body.Data[0].ReferenceID)
	})

	t.Run("rejects an out of range limit", func(t *testing.T) {
		engine, _ := newTestEngine(t, nil, nil)

		w := serve(engine, http.MethodGet, "/api/v1/ops/posting-failures?limit=0", http.Header{"X-Tenant-Id": {uuid.NewString()}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("resolves by event id", func(t *testing.T) {
		engine, failures := newTestEngine(t, nil, nil)
		eventID := uuid.New()

		w := serve(engine, http.MethodPost, "/api/v1/ops/posting-failures/"+eventID.String()+"/resolve", http.Header{"X-Tenant-Id": {uuid.NewString()}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []uuid.UUID{eventID}, failures.resolved)
	})
}

func TestEngine_HTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	engine, _ := newTestEngine(t, nil, provider)
	serve(engine, http.MethodGet, "/health", nil)
	serve(engine, http.MethodGet, "/nowhere", nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	routes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value(attribute.Key("http.route"))
				routes[route.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"/health": 1, "unknown": 1}, routes)
}
