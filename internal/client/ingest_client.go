package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"logguard/internal/model"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// IngestClient pushes batches of log events to a running logguard server.
type IngestClient struct {
	baseURL    string
	healthAddr string
	client     *http.Client
}

// IngestResponse mirrors the body returned by the ingest endpoint.
type IngestResponse struct {
	StatusCode int                    `json:"statusCode"`
	Body       model.InvocationResult `json:"body"`
}

// NewIngestClient targets the API at baseURL. healthAddr is the gRPC health
// endpoint (host:port) and may be empty.
func NewIngestClient(baseURL, healthAddr string, timeout time.Duration) *IngestClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IngestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthAddr: healthAddr,
		client:     &http.Client{Timeout: timeout},
	}
}

// Send posts events as one stream batch and returns the invocation result.
func (c *IngestClient) Send(ctx context.Context, events []model.LogEvent) (*model.InvocationResult, error) {
	batch, err := model.NewStreamBatch(events)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/ingest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ingest endpoint returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result.Body, nil
}

// TestConnection asks the server's gRPC health service whether it is serving.
func (c *IngestClient) TestConnection(ctx context.Context) error {
	if c.healthAddr == "" {
		return fmt.Errorf("no health endpoint configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(c.healthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.healthAddr, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("connection test failed: server status is %s", resp.GetStatus())
	}
	return nil
}
