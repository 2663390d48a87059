// Command bp-server serves the bloomplan plan API over gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/bloomplan/internal/config"
	"github.com/and161185/bloomplan/internal/limiter"
	"github.com/and161185/bloomplan/internal/logging"
	"github.com/and161185/bloomplan/internal/migrate"
	wire "github.com/and161185/bloomplan/internal/planwire"
	"github.com/and161185/bloomplan/internal/repository/postgres"
	grpcserver "github.com/and161185/bloomplan/internal/server/grpc"
	"github.com/and161185/bloomplan/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// loadConfig layers flags over the environment and .env settings.
func loadConfig(args []string) (config.ServerConfig, error) {
	fs := flag.NewFlagSet("bp-server", flag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "dotenv file")
	addr := fs.String("addr", "", "listen address")
	dsn := fs.String("dsn", "", "PostgreSQL DSN")
	jwtKey := fs.String("jwt-key", "", "HS256 signing key")
	accessTTL := fs.Duration("access-ttl", 0, "access token TTL")
	certFile := fs.String("tls-cert", "", "TLS certificate (PEM)")
	keyFile := fs.String("tls-key", "", "TLS private key (PEM)")
	plaintext := fs.Bool("plaintext", false, "serve without TLS (dev only)")
	logFile := fs.String("log-file", "", "rotating JSON log file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return config.ServerConfig{}, err
	}

	cfg, err := config.LoadServer(*envFile)
	if err != nil {
		return config.ServerConfig{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "dsn":
			cfg.DSN = *dsn
		case "jwt-key":
			cfg.JWTKey = *jwtKey
		case "access-ttl":
			cfg.AccessTTL = *accessTTL
		case "tls-cert":
			cfg.TLSCert = *certFile
		case "tls-key":
			cfg.TLSKey = *keyFile
		case "plaintext":
			cfg.Plaintext = *plaintext
		case "log-file":
			cfg.LogFile = *logFile
		}
	})
	return cfg, cfg.Validate()
}

func newLogger(cfg config.ServerConfig) (*zap.Logger, func(), error) {
	if cfg.LogFile == "" {
		log, err := zap.NewProduction()
		if err != nil {
			return nil, nil, err
		}
		return log, func() { _ = log.Sync() }, nil
	}
	return logging.New(logging.Config{File: cfg.LogFile, Level: "info"})
}

// newGRPCServer wires services, interceptors and health checks.
func newGRPCServer(cfg config.ServerConfig, db *postgres.DB, log *zap.Logger) (*grpc.Server, error) {
	var opts []grpc.ServerOption
	if !cfg.Plaintext {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("load tls cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	lim := limiter.NewPostgres(db.Pool, limiter.Policy{
		Window:   cfg.LimitWindow,
		MaxFails: cfg.LimitFails,
		BlockFor: cfg.LimitBlockFor,
	})
	authSvc := service.NewAuthService(postgres.NewUserRepo(db), []byte(cfg.JWTKey), cfg.AccessTTL, lim)
	planSvc := service.NewPlanService(postgres.NewPlanRepo(db))

	opts = append(opts, grpc.ChainUnaryInterceptor(
		grpcserver.RecoverUnary(log),
		grpcserver.LoggingUnary(log),
		grpcserver.AuthUnary(authSvc, grpcserver.PublicMethods...),
	))
	s := grpc.NewServer(opts...)
	wire.RegisterPlanServiceServer(s, grpcserver.New(authSvc, planSvc))

	hs := health.NewServer()
	hs.SetServingStatus(wire.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, nil
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "bp-server:", err)
		os.Exit(2)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bp-server: logger:", err)
		os.Exit(1)
	}
	defer closeLog()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.Bool("plaintext", cfg.Plaintext),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger.Named("migrate")); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer db.Close()

	s, err := newGRPCServer(cfg, db, logger)
	if err != nil {
		logger.Fatal("grpc server", zap.Error(err))
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(cfg.ShutdownGrace):
			logger.Warn("graceful stop timed out", zap.Duration("grace", cfg.ShutdownGrace))
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		closeLog()
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
