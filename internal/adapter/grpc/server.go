package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/grpc/middleware"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/auth"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

// publicMethods skip token resolution. Today these are the only RPCs, so the
// auth interceptor only ever guards methods registered after them.
var publicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer builds the gRPC server that reports the service health to
// orchestrators. The returned cleanup marks the service NOT_SERVING and stops
// the server gracefully.
func NewGRPCServer(serviceName string, appLogger *logger.Logger, verifier *auth.Verifier) (*grpc.Server, *health.Server, func()) {
	server := grpc.NewServer(
		middleware.TracingOption(),
		grpc.ChainUnaryInterceptor(
			middleware.LoggingInterceptor(appLogger),
			middleware.AuthInterceptor(verifier, appLogger, publicMethods),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	appLogger.Info("gRPC server configured with health service", "service", serviceName)

	cleanup := func() {
		appLogger.Info("gRPC server: shutting down")
		healthServer.Shutdown()
		server.GracefulStop()
		appLogger.Info("gRPC server: stopped")
	}
	return server, healthServer, cleanup
}
