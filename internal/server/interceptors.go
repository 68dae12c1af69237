package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/callsheet/internal/api"
)

var healthMethod = api.FullMethod(api.MethodHealth)

// checkBearer validates an Authorization header value against token.
func checkBearer(header, token string) error {
	if header == "" {
		return errors.New("missing authorization header")
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errors.New("invalid authorization scheme")
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return errors.New("invalid token")
	}
	return nil
}

// rpcLevel is INFO for outcomes the caller caused (nothing to claim, bad
// input, a row they do not hold, no token) and ERROR for the rest.
func rpcLevel(code codes.Code) slog.Level {
	switch code {
	case codes.OK, codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition, codes.Unauthenticated:
		return slog.LevelInfo
	}
	return slog.LevelError
}

// requestUser pulls the "user" field out of a Struct request, if any.
func requestUser(req any) string {
	s, ok := req.(*structpb.Struct)
	if !ok {
		return ""
	}
	return s.GetFields()["user"].GetStringValue()
}

// LoggingInterceptor logs every unary RPC with its duration, status code
// and, for lead operations, the calling user.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	attrs := []any{"method", info.FullMethod, "duration", time.Since(start)}
	if u := requestUser(req); u != "" {
		attrs = append(attrs, "user", u)
	}
	if code != codes.OK {
		attrs = append(attrs, "code", code)
	}
	if rpcLevel(code) == slog.LevelError {
		attrs = append(attrs, "error", err)
	}
	slog.Log(ctx, rpcLevel(code), "rpc completed", attrs...)
	return resp, err
}

// RecoveryInterceptor turns a handler panic into codes.Internal and logs
// the stack.
func RecoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in gRPC handler",
				"method", info.FullMethod,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// AuthInterceptor requires "authorization: Bearer <token>" metadata on
// every RPC except Health. An empty token disables the check.
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if token == "" || info.FullMethod == healthMethod {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		var header string
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}
		if err := checkBearer(header, token); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// AuthMiddleware is AuthInterceptor for HTTP. GET /v1/health is exempt.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if err := checkBearer(r.Header.Get("Authorization"), token); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
