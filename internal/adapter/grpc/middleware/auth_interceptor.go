package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/auth"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

// AuthInterceptor requires a valid bearer token on every method not listed in
// publicMethods and stores the resolved identity in the context.
func AuthInterceptor(v *auth.Verifier, log *logger.Logger, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			log.Warn("AuthInterceptor: missing metadata", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "metadata is not provided")
		}
		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			log.Warn("AuthInterceptor: authorization header not found", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "authorization token is not provided")
		}
		token, ok := auth.BearerToken(authHeaders[0])
		if !ok {
			log.Warn("AuthInterceptor: malformed authorization header", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "authorization token format is invalid, expected 'Bearer <token>'")
		}
		if v == nil {
			return nil, status.Error(codes.Unauthenticated, "token verification is not configured")
		}

		id, err := v.Verify(token)
		if err != nil {
			log.Warn("AuthInterceptor: token rejected", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		log.Debug("AuthInterceptor: authenticated", "method", info.FullMethod, "user_id", id.ID)
		return handler(auth.WithIdentity(ctx, id), req)
	}
}
