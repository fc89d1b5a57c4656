package database

import (
	"net"

	"marketplace_chat_service/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StartHealthServer serve grpc.health.v1 on addr; the returned health server
// starts in NOT_SERVING until the caller flips it
func StartHealthServer(addr, service string) (*grpc.Server, *health.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		if err := srv.Serve(listener); err != nil {
			logger.Log.Error("grpc health server stopped", zap.Error(err))
		}
	}()
	logger.Log.Info("grpc health server listening", zap.String("addr", listener.Addr().String()))

	return srv, hs, nil
}
