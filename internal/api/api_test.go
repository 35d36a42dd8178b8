package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"logguard/internal/alert"
	"logguard/internal/client"
	"logguard/internal/model"
	"logguard/internal/pipeline"
	"logguard/internal/rules"
	"logguard/internal/rules/builtin"
	"logguard/internal/storage"
	"logguard/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *httptest.Server
	store  *storage.MemoryStore
	hub    *AlertHub
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	var seq atomic.Int64
	engine := rules.NewEngine(logger, rules.WithIDGenerator(func() string {
		return fmt.Sprintf("anomaly-%d", seq.Add(1))
	}))
	builtin.RegisterBuiltinRules(engine, nil, logger)

	store := storage.NewMemoryStore(100, logger)
	hub := NewAlertHub(logger)
	processor := pipeline.NewProcessor(engine, logger,
		pipeline.WithSink(store),
		pipeline.WithDispatcher(alert.NewDispatcher(hub, logger)),
	)

	h := NewHandlers(processor, store, engine, utils.GetDefaultConfig(), hub, logger)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, hub: hub}
}

func (e *testEnv) ingest(t *testing.T, events ...model.LogEvent) client.IngestResponse {
	t.Helper()
	batch, err := model.NewStreamBatch(events)
	require.NoError(t, err)
	body, err := json.Marshal(batch)
	require.NoError(t, err)

	resp, err := http.Post(e.server.URL+"/api/v1/ingest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out client.IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestIngestAndQuery(t *testing.T) {
	env := newTestEnv(t)

	out := env.ingest(t,
		model.LogEvent{Level: "ERROR", Source: "web-app", Message: "Out of memory"},
		model.LogEvent{Level: "INFO", Source: "auth-service", Message: "Authentication failed"},
		model.LogEvent{Level: "INFO", Source: "web-app", Message: "Cache hit"},
	)
	assert.Equal(t, 200, out.StatusCode)
	assert.Equal(t, model.InvocationResult{RecordsProcessed: 3, AnomaliesDetected: 2, CriticalAnomalies: 1}, out.Body)

	var list struct {
		Items []model.Anomaly `json:"items"`
		Total int             `json:"total"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/api/v1/anomalies?severity=high", &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, model.AnomalyFailedLogin, list.Items[0].Type)

	var one model.Anomaly
	assert.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/api/v1/anomalies/"+list.Items[0].AnomalyID, &one))
	assert.Equal(t, "auth-service", one.Source)

	var stats storage.Stats
	assert.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/api/v1/anomalies/stats", &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByType["ERROR_SPIKE"])
}

func TestIngestRejectsBadEnvelope(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/v1/ingest", "application/json", strings.NewReader(`{"Records":`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestCountsMalformedRecords(t *testing.T) {
	env := newTestEnv(t)

	body := `{"Records":[{"kinesis":{"data":"not-base64!"}},{"kinesis":{"data":{"nested":true}}},{"kinesis":{"data":"e30="}}]}`
	resp, err := http.Post(env.server.URL+"/api/v1/ingest", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out client.IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, out.Body.RecordsProcessed)
	assert.Zero(t, out.Body.AnomaliesDetected)
}

func TestGetAnomalyNotFound(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, env.server.URL+"/api/v1/anomalies/missing", nil))
}

func TestGetRules(t *testing.T) {
	env := newTestEnv(t)

	var out struct {
		Rules      []model.RuleInfo `json:"rules"`
		Thresholds struct {
			ErrorThreshold       int `json:"error_threshold"`
			FailedLoginThreshold int `json:"failed_login_threshold"`
		} `json:"thresholds"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, env.server.URL+"/api/v1/rules", &out))
	require.Len(t, out.Rules, 4)
	assert.Equal(t, "error_level", out.Rules[0].Name)
	assert.Equal(t, 1, out.Rules[0].Priority)
	assert.Equal(t, "database_issue", out.Rules[3].Name)
	assert.Equal(t, 5, out.Thresholds.ErrorThreshold)
	assert.Equal(t, 3, out.Thresholds.FailedLoginThreshold)
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestStreamAlerts(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/stream/alerts?severity=critical"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	// HIGH only, filtered out for this subscriber
	env.ingest(t, model.LogEvent{Level: "INFO", Source: "auth-service", Message: "failed login"})
	env.ingest(t, model.LogEvent{Level: "CRITICAL", Source: "payment-service", Message: "Payment gateway unreachable"})

	var msg AlertMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, "LogGuard Alert - 1 Critical Issues", msg.Subject)
	require.Len(t, msg.Anomalies, 1)
	assert.Equal(t, model.SeverityCritical, msg.Anomalies[0].Severity)
}

func TestAlertHubDropsWhenFull(t *testing.T) {
	hub := NewAlertHub(testLogger())
	sub := hub.Subscribe(AlertFilter{})
	assert.Equal(t, 1, hub.Subscribers())

	for i := 0; i < cap(sub.Channel)+5; i++ {
		require.NoError(t, hub.SendAlert(context.Background(), model.Alert{Subject: "s"}))
	}
	assert.Len(t, sub.Channel, cap(sub.Channel))

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	assert.Zero(t, hub.Subscribers())
	assert.Equal(t, "websocket", hub.Destination())
}

func TestAlertFilter(t *testing.T) {
	anomalies := []model.Anomaly{
		{Type: model.AnomalyFailedLogin, Severity: model.SeverityHigh, Source: "auth-service"},
	}
	assert.True(t, AlertFilter{}.matches(anomalies))
	assert.True(t, AlertFilter{Severity: "HIGH", Source: "auth-service"}.matches(anomalies))
	assert.False(t, AlertFilter{Type: "DATABASE_ISSUE"}.matches(anomalies))
}
