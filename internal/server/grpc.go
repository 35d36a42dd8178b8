package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// PipelineService is the health service name reported alongside the overall status.
const PipelineService = "logguard.Pipeline"

// HealthServer exposes the standard gRPC health protocol.
type HealthServer struct {
	server       *grpc.Server
	healthServer *health.Server
	port         string
	logger       *logrus.Logger
}

func NewHealthServer(port string, logger *logrus.Logger) *HealthServer {
	s := grpc.NewServer(grpc.ConnectionTimeout(30 * time.Second))
	healthServer := health.NewServer()

	grpc_health_v1.RegisterHealthServer(s, healthServer)
	reflection.Register(s)

	return &HealthServer{
		server:       s,
		healthServer: healthServer,
		port:         port,
		logger:       logger,
	}
}

// SetServing flips the reported status of the server and the pipeline service.
func (s *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", status)
	s.healthServer.SetServingStatus(PipelineService, status)
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *HealthServer) Start(ctx context.Context) error {
	addr := ":" + s.port
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Infof("gRPC health server starting on %s", listener.Addr())
	s.SetServing(true)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.stop()
	return nil
}

func (s *HealthServer) stop() {
	s.logger.Info("Stopping gRPC health server")
	s.SetServing(false)

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		s.logger.Warn("gRPC server forced to stop after timeout")
		s.server.Stop()
	}
}
