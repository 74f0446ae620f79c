// Command framesift serves capture inspection over Arrow Flight.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/framesift/framesift/internal/limiter"
	"github.com/framesift/framesift/internal/logging"
	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/security"
	"github.com/framesift/framesift/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	logger := logging.NewStructuredLogger(logging.LoggerConfig{
		Level:         logging.ParseLevel(cfg.LogLevel),
		EnableConsole: cfg.LogFormat == "console",
		Component:     "framesift",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := service.NewInspectionServer(
		dumpOpener(cfg.DumpDir, security.NewAuditLogger(logger)),
		service.WithLogger(logger),
		service.WithMaxSessions(cfg.MaxSessions),
	)

	opts := cfg.BuildGRPCServerOptions()
	rl := limiter.New(limiter.Config{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})
	if rl.Enabled() {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(rl.UnaryInterceptor()),
			grpc.ChainStreamInterceptor(rl.StreamInterceptor()),
		)
	}
	grpcServer := grpc.NewServer(opts...)
	flight.RegisterFlightServiceServer(grpcServer, srv)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	logger.Info(ctx, "framesift server starting", map[string]any{
		"listen":  cfg.ListenAddr,
		"metrics": cfg.MetricsAddr,
		"dumps":   cfg.DumpDir,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info(context.Background(), "shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// dumpOpener resolves capture references inside the dump directory,
// refusing anything that escapes it.
func dumpOpener(root string, audit *security.AuditLogger) service.ControllerOpener {
	return func(capture string) (replay.Controller, error) {
		ctx := context.Background()
		start := time.Now()

		path, err := security.ResolveCaptureRef(root, capture)
		if err != nil {
			audit.CaptureRejected(ctx, capture, err)
			return nil, err
		}
		ctrl, err := replay.LoadDump(path)
		if err != nil {
			audit.CaptureRejected(ctx, capture, err)
			return nil, err
		}
		audit.CaptureOpened(ctx, capture, path, time.Since(start))
		return ctrl, nil
	}
}
