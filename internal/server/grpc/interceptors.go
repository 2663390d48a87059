package grpcserver

import (
	"context"
	"path"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	wire "github.com/and161185/bloomplan/internal/planwire"
	"github.com/and161185/bloomplan/internal/service"
)

// levelFor maps a call outcome to a log level: caller mistakes are info,
// transient failures warn, anything else is a server error.
func levelFor(c codes.Code) zapcore.Level {
	switch c {
	case codes.OK, codes.Canceled, codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
		codes.Unauthenticated, codes.PermissionDenied, codes.FailedPrecondition, codes.ResourceExhausted:
		return zapcore.InfoLevel
	case codes.DeadlineExceeded, codes.Unavailable:
		return zapcore.WarnLevel
	}
	return zapcore.ErrorLevel
}

// LoggingUnary logs one line per call with method, code, duration and peer.
// Payloads are never logged.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		st := status.Convert(err)

		ce := log.Check(levelFor(st.Code()), "rpc")
		if ce == nil {
			return resp, err
		}
		fields := []zap.Field{
			zap.String("method", path.Base(info.FullMethod)),
			zap.String("code", st.Code().String()),
			zap.Duration("dur", time.Since(start)),
		}
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			fields = append(fields, zap.String("peer", p.Addr.String()))
		}
		if err != nil {
			fields = append(fields, zap.String("error", st.Message()))
		}
		ce.Write(fields...)
		return resp, err
	}
}

// RecoverUnary turns a handler panic into codes.Internal and logs the stack.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error("handler panic",
				zap.String("method", info.FullMethod),
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
			)
			resp, err = nil, status.Error(codes.Internal, "internal")
		}()
		return next(ctx, req)
	}
}

// PublicMethods are served without an access token.
var PublicMethods = []string{
	wire.FullMethod(wire.MethodRegister),
	wire.FullMethod(wire.MethodLogin),
	healthpb.Health_Check_FullMethodName,
}

// AuthUnary verifies the bearer token of every call except public ones and
// stores the caller's claims in the handler context.
func AuthUnary(auth service.AuthService, public ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]struct{}, len(public))
	for _, m := range public {
		skip[m] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if _, ok := skip[info.FullMethod]; ok {
			return next(ctx, req)
		}
		tok, err := bearerTokenFromMD(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		c, err := auth.Authenticate(ctx, tok)
		if err != nil {
			return nil, toStatus("auth", err)
		}
		return next(WithClaims(ctx, c), req)
	}
}
