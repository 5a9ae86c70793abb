package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/pdf-tagger/internal/app"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/ingest"
)

const serviceName = "pdftagger.Tagger"

func main() {
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	// Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := common.LoadDotEnv(*envFile); err != nil {
		logger.Error("pdftaggerd.config_failed", "error", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	if len(flag.Args()) > 0 {
		cfg.Server.WatchRoots = flag.Args()
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("pdftaggerd.config_failed", "error", err)
		os.Exit(1)
	}
	if len(cfg.Server.WatchRoots) == 0 {
		logger.Error("pdftaggerd.config_failed", "error", "PDFTAGGER_WATCH_ROOTS or a folder argument is required")
		os.Exit(1)
	}
	if cfg.Database.DSN == "" {
		logger.Error("pdftaggerd.config_failed", "error", "DB_URL is required")
		os.Exit(1)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Passes: app.Passes{Text: true, Image: true}}, logger)
	if err != nil {
		logger.Error("pdftaggerd.init_failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Healthcheck DB on startup
	if err := a.Store.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		logger.Error("pdftaggerd.db_health_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("pdftaggerd.db_health_ok", "dialect", a.Store.Dialect())

	// gRPC server
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("pdftaggerd.listen_failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("pdftaggerd.grpc.serving", "addr", lis.Addr().String())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("pdftaggerd.grpc.serve_failed", "error", err)
			stop()
		}
	}()

	batches, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Server.WatchRoots,
		InitialScan: true,
		Debounce:    cfg.Server.Debounce,
		SkipHidden:  true,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("pdftaggerd.watch_failed", "error", err)
		os.Exit(1)
	}
	go func() {
		for err := range errs {
			logger.Warn("pdftaggerd.watch_error", "error", err)
		}
	}()

	for batch := range batches {
		items := make([]ingest.Item, 0, len(batch))
		for _, p := range batch {
			// folder tags stay relative to the watch root holding the file
			items = append(items, ingest.Item{Path: p, BaseDir: ingest.RootOf(p, cfg.Server.WatchRoots)})
		}
		sum := a.Run(ctx, items)
		logger.Info("pdftaggerd.batch.done",
			"run_id", sum.RunID,
			"documents", len(items),
			"failed", sum.Result.Tally.Failed,
			"cost_usd", fmt.Sprintf("%.4f", sum.Cost),
			"saved_usd", fmt.Sprintf("%.4f", sum.Saved))
	}

	logger.Info("pdftaggerd.shutting_down")
	hs.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("pdftaggerd.stopped")
}
