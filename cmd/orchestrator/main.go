package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	httpapi "github.com/sealbridge/orchestrator/internal/api/http"
	"github.com/sealbridge/orchestrator/internal/application/listener"
	apppresign "github.com/sealbridge/orchestrator/internal/application/presign"
	appsession "github.com/sealbridge/orchestrator/internal/application/session"
	"github.com/sealbridge/orchestrator/internal/application/treasury"
	"github.com/sealbridge/orchestrator/internal/application/txqueue"
	"github.com/sealbridge/orchestrator/internal/config"
	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/infrastructure/gateway"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sqlite"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sse"
	"github.com/sealbridge/orchestrator/internal/observability"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer db.Close()

	// repositories
	sessionRepo := sqlite.NewSessionRepository(db)
	presignRepo := sqlite.NewPresignRepository(db)
	cursorRepo := sqlite.NewCursorRepository(db)

	// observability
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	// ledger gateways
	coordClient := gateway.NewClient(cfg.CoordinationRPCURL, cfg.CoordinationAuthToken, cfg.CoordinationRateLimit, 2)
	coordGW := gateway.NewCoordinationGateway(coordClient, logger)
	destClient := gateway.NewClient(cfg.DestinationRPCURL, cfg.DestinationAuthToken, cfg.DestinationRateLimit, 2)
	destGW := gateway.NewDestinationGateway(destClient, logger)

	type sourceGateway interface {
		VerifyPayment(ctx context.Context, signature string) (*chain.Payment, error)
		FetchLockEvents(ctx context.Context, after string, limit int) ([]chain.Event, error)
	}
	verifiers := make(map[string]appsession.PaymentVerifier, len(cfg.SourceChains))
	sources := make(map[string]sourceGateway, len(cfg.SourceChains))
	for _, sc := range cfg.SourceChains {
		if chain.IsEVM(sc.Selector) {
			gw, err := gateway.NewEVMGateway(ctx, gateway.EVMConfig{
				Chain:        sc.Selector,
				RPCURL:       sc.RPCURL,
				LockContract: sc.LockContract,
				FeeCollector: sc.FeeCollector,
				StartBlock:   sc.StartBlock,
				RateLimit:    sc.RateLimit,
				RateBurst:    sc.RateBurst,
			}, logger)
			if err != nil {
				log.Fatalf("gateway error for %s: %v", sc.Selector, err)
			}
			defer gw.Close()
			verifiers[sc.Selector] = gw
			sources[sc.Selector] = gw
			continue
		}
		client := gateway.NewClient(sc.RPCURL, "", sc.RateLimit, sc.RateBurst)
		gw := gateway.NewNEARGateway(client, logger)
		verifiers[sc.Selector] = gw
		sources[sc.Selector] = gw
	}

	// services
	sseHub := sse.NewHub()
	defer sseHub.Stop()
	queues := txqueue.NewRegistry(cfg.QueueDepth, logger)
	defer queues.Close()
	pool := apppresign.NewPool(presignRepo, cfg.PresignAllocTTL, cfg.PresignSweepInterval, metrics, logger)
	sessionSvc := appsession.NewService(sessionRepo, pool, coordGW, destGW, verifiers, queues, sseHub,
		appsession.Config{
			SessionTTL:     cfg.SessionTTL,
			FeeAmount:      cfg.FeeAmount,
			ResumeInterval: cfg.ResumeInterval,
			ExpiryInterval: cfg.ExpiryInterval,
		}, metrics, logger)
	treasurySvc := treasury.NewManager(coordGW, queues.For(appsession.ObjectCoordination),
		treasury.Config{
			LowWater:    cfg.TreasuryLowWater,
			TopUpAmount: cfg.TreasuryTopUpAmount,
			Interval:    cfg.TreasuryInterval,
		}, metrics, logger)

	// background loops
	events := listener.New(cursorRepo, cfg.ListenerFailureBudget, metrics, logger)
	for _, sc := range cfg.SourceChains {
		src := sources[sc.Selector]
		go events.Run(ctx, listener.Subscription{
			Key:       sc.Selector + ".locks",
			Fetch:     src.FetchLockEvents,
			Handler:   sessionSvc.HandleDeposit,
			Filter:    `type == "seal_initiated"`,
			Interval:  sc.PollInterval,
			BatchSize: cfg.ListenerBatchSize,
		})
	}
	go events.Run(ctx, listener.Subscription{
		Key:       "coordination.attestations",
		Fetch:     coordGW.FetchAttestationEvents,
		Handler:   sessionSvc.HandleAttestationEvent,
		Interval:  cfg.AttestationInterval,
		BatchSize: cfg.ListenerBatchSize,
	})
	go pool.Run(ctx)
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for object, depth := range queues.Depths() {
					metrics.QueueDepth.WithLabelValues(object).Set(float64(depth))
				}
			}
		}
	}()
	go sessionSvc.RunResume(ctx)
	go sessionSvc.RunExpiry(ctx)
	if cfg.TreasuryLowWater.Sign() > 0 {
		go treasurySvc.Run(ctx)
	}

	// API server
	apiServer := httpapi.NewServer(sessionSvc, sseHub, registry, logger)
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}
