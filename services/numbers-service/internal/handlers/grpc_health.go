package handlers

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vanityline/vanityline/pkg/logger"
)

const ServiceName = "numbers-service"

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewGRPCServer returns a server exposing the standard health service and reflection.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return server, healthServer
}

// WatchHealth flips the service status to NOT_SERVING while db stops answering pings.
// It returns when ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, db Pinger, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval/2)
			err := db.Ping(pingCtx)
			cancel()

			switch {
			case err != nil && serving:
				log.Warn("Database unreachable, reporting NOT_SERVING", logger.Err(err))
				hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
				serving = false
			case err == nil && !serving:
				log.Info("Database reachable again, reporting SERVING")
				hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
				serving = true
			}
		}
	}
}
