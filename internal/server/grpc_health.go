package server

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer is a gRPC server carrying only the standard health service,
// for orchestrators that probe over gRPC.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
	logger *slog.Logger
}

func NewHealthServer(logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	return &HealthServer{srv: srv, health: hs, logger: logger}
}

// Start listens on addr and serves in the background.
func (h *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	h.lis = lis
	// Empty service name is the overall server health.
	h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.logger.Info("grpc health listening", "addr", lis.Addr().String())
	go func() {
		if err := h.srv.Serve(lis); err != nil {
			h.logger.Error("gRPC serve error", "error", err)
		}
	}()
	return nil
}

func (h *HealthServer) Addr() string {
	if h.lis == nil {
		return ""
	}
	return h.lis.Addr().String()
}

// SetServing flips the overall status, e.g. to NOT_SERVING while draining.
func (h *HealthServer) SetServing(ok bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.srv.GracefulStop()
}
