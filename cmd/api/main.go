package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/proticket/marketplace-core/config"
	"github.com/proticket/marketplace-core/internal/clock"
	httpDelivery "github.com/proticket/marketplace-core/internal/delivery/http"
	"github.com/proticket/marketplace-core/internal/delivery/kafka/producer"
	infraRedis "github.com/proticket/marketplace-core/internal/infra/redis"
	repo "github.com/proticket/marketplace-core/internal/repository/kv"
	"github.com/proticket/marketplace-core/internal/service"
	pkgKafka "github.com/proticket/marketplace-core/pkg/kafka"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	pkgLog "github.com/proticket/marketplace-core/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := infraRedis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer infraRedis.Disconnect(redisCli)

	store := kvstore.NewRedisStore(redisCli, cfg.Redis.KeyPrefix, l)

	retry := kvstore.RetryConfig{
		Attempts: cfg.Inventory.RetryAttempts,
		Backoff:  cfg.Inventory.RetryBackoff,
	}

	eventRepo := repo.NewEventRepository(store, retry, l)
	orderRepo := repo.NewOrderRepository(store, retry, l)
	ticketRepo := repo.NewTicketRepository(store, l)
	attemptRepo := repo.NewLoginAttemptRepository(store, retry, l)

	// Kafka is optional; downstream notification consumers may not be
	// deployed in every environment.
	prod := producer.NewNoopProducer()
	if cfg.Kafka.Enabled {
		kSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kSyncProd, l)
	}
	defer func() {
		if err := prod.Close(); err != nil {
			l.Errorf(ctx, "Failed to close Kafka producer: %v", err)
		}
	}()

	clk := clock.NewSystem()

	// Initialize services
	invSvc := service.NewInventoryService(eventRepo, l)
	evSvc := service.NewEventService(eventRepo, clk, l)
	ordSvc := service.NewOrderService(
		orderRepo, ticketRepo, eventRepo, invSvc, prod,
		cfg.Ticket.QRSigningSecret, clk, l,
	)
	lockSvc := service.NewLockoutService(attemptRepo, cfg.Lockout, clk, l)

	handler := httpDelivery.NewHTTPHandler(evSvc, ordSvc, lockSvc, l)

	httpSrv := &stdhttp.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC health server for orchestrator probes
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcHealthPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC health server failed to listen: %v", err)
	}

	gRpcSrv := grpc.NewServer()
	healthSvc := health.NewServer()
	healthpb.RegisterHealthServer(gRpcSrv, healthSvc)
	healthSvc.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof(ctx, "gRPC health server is listening on port: %d", cfg.Server.GRpcHealthPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			return fmt.Errorf("grpc health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-quit:
		case <-gCtx.Done():
		}

		l.Info(ctx, "Server shutting down...")
		healthSvc.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			l.Errorf(ctx, "Failed to shut down HTTP server: %v", err)
		}
		gRpcSrv.GracefulStop()
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Fatalf(ctx, "Server error: %v", err)
	}

	l.Info(ctx, "Server exited")
}
