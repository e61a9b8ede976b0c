package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

// LoggingInterceptor writes one line per RPC. The trace id is attached when
// the otelgrpc stats handler started a span for the call.
func LoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		kv := []interface{}{"method", info.FullMethod, "duration", time.Since(start), "code", status.Code(err).String()}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			kv = append(kv, "trace_id", sc.TraceID().String())
		}
		if err != nil {
			log.Error("gRPC request failed", append(kv, "error", err)...)
		} else {
			log.Info("gRPC request completed", kv...)
		}
		return resp, err
	}
}
