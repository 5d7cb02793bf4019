package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/consumers"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/events"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/handler"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/service"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/config"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/httputil"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/messaging"
)

const serviceName = "ledger-service"

func main() {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Str("environment", cfg.Server.Environment).Msg("starting ledger service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeLedgerEvents, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create publisher")
	}

	// Repositories
	lpRepo := repository.NewLicensePlateRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	receiptRepo := repository.NewGoodsReceiptRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	seqRepo := repository.NewSequenceRepository(db)
	genealogyRepo := repository.NewGenealogyRepository(db)
	overConsumptionRepo := repository.NewOverConsumptionRepository(db)

	// Services
	eventPublisher := events.NewPublisher(publisher, log)
	ledgerService := service.NewLedgerService(db, lpRepo, catalogRepo, eventPublisher, log)
	allocationService := service.NewAllocationService(lpRepo)
	consumptionService := service.NewConsumptionService(db, lpRepo, eventPublisher, log)
	outputService := service.NewOutputService(db, lpRepo, catalogRepo, seqRepo, eventPublisher, log)
	mergeService := service.NewMergeService(db, lpRepo, catalogRepo, seqRepo, genealogyRepo, eventPublisher, log)
	receiptService := service.NewReceiptService(db, lpRepo, orderRepo, receiptRepo, catalogRepo, seqRepo, outputService, eventPublisher, log)
	overConsumptionService := service.NewOverConsumptionService(overConsumptionRepo, eventPublisher, log)

	// Handlers
	lpHandler := handler.NewLicensePlateHandler(ledgerService, allocationService, consumptionService, outputService, mergeService, log)
	receiptHandler := handler.NewReceiptHandler(receiptService, log)
	overConsumptionHandler := handler.NewOverConsumptionHandler(overConsumptionService, log)

	// Event consumer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := messaging.NewConsumer(rmq, serviceName+".catalog", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	catalogConsumer := consumers.NewCatalogConsumer(catalogRepo, log)
	if err := catalogConsumer.Register(consumer); err != nil {
		log.Fatal().Err(err).Msg("failed to register catalog consumer")
	}
	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}

	// Router
	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", httputil.HeaderOrgID, httputil.HeaderUserID, httputil.HeaderUserName, httputil.HeaderUserEmail},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"service":  serviceName,
			"database": db.Health(req.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1/ledger", func(r chi.Router) {
		r.Use(httputil.OrgContext)
		lpHandler.RegisterRoutes(r)
		receiptHandler.RegisterRoutes(r)
		overConsumptionHandler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("stopped")
}
