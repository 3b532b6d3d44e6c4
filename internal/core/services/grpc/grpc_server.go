// Package grpc exposes the standard gRPC health service for the monitor.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health service names. The empty name reports overall process health.
const (
	ServiceCapture = "voipmon.Capture"
	ServiceModel   = "voipmon.Model"
)

// ModelState reports whether the anomaly ensemble is fitted.
type ModelState interface {
	IsTrained() bool
}

// HealthServer wraps a gRPC server carrying only the health service.
type HealthServer struct {
	Server *grpc.Server
	health *health.Server
	model  ModelState
}

// NewHealthServer registers the health service. Capture starts NOT_SERVING
// until SetCapturing(true) is called.
func NewHealthServer(model ModelState) *HealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	hs := &HealthServer{Server: s, health: h, model: model}
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetCapturing(false)
	hs.refreshModel()
	return hs
}

// SetCapturing flips the capture service status.
func (hs *HealthServer) SetCapturing(on bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if on {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus(ServiceCapture, status)
}

func (hs *HealthServer) refreshModel() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if hs.model != nil && hs.model.IsTrained() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus(ServiceModel, status)
}

// Watch refreshes the model status every interval until ctx is cancelled.
func (hs *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hs.refreshModel()
			}
		}
	}()
}

// Serve accepts connections on lis until ctx is cancelled, then marks every
// service NOT_SERVING and stops gracefully.
func (hs *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		hs.health.Shutdown()
		hs.Server.GracefulStop()
	}()
	if err := hs.Server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
