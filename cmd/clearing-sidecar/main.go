package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/zoff-tech/go-clearing/pkg/adapter"
	"github.com/zoff-tech/go-clearing/pkg/broker"
	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/dispatch"
	"github.com/zoff-tech/go-clearing/pkg/management"
	"github.com/zoff-tech/go-clearing/pkg/store"
	"github.com/zoff-tech/go-clearing/pkg/telemetry"
	"github.com/zoff-tech/go-clearing/pkg/token"
	"github.com/zoff-tech/go-clearing/pkg/uetr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from file or environment
	cfg, err := config.LoadFromFile("./cmd/clearing-sidecar")
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	// Initialize telemetry (tracing and metrics)
	shutdownTelemetry, err := telemetry.Init(cfg.Observability)
	if err != nil {
		log.Fatal("Failed to initialize telemetry: ", err)
	}
	defer shutdownTelemetry()

	// Initialize the tracking repository
	repo, err := store.NewRepository(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize repository: ", err)
	}

	// Initialize the message broker for tracking events
	msgBroker, err := broker.NewBroker(ctx, &cfg.Broker)
	if err != nil {
		log.Fatal("Failed to initialize broker: ", err)
	}
	defer msgBroker.Close()

	uetrs := uetr.NewService(repo)

	// One token cache for the whole process, keyed per adapter
	endpoints := make(map[string]config.TokenSettings, len(cfg.Adapters))
	for key, adapterCfg := range cfg.Adapters {
		endpoints[key] = adapterCfg.Token
	}
	tokens := token.NewCacheManager(endpoints, nil)

	// Wire the adapter facades
	accountCfg, err := cfg.Adapter("account")
	if err != nil {
		log.Fatal("Missing adapter configuration: ", err)
	}
	bankservCfg, err := cfg.Adapter("bankserv")
	if err != nil {
		log.Fatal("Missing adapter configuration: ", err)
	}
	samosCfg, err := cfg.Adapter("samos")
	if err != nil {
		log.Fatal("Missing adapter configuration: ", err)
	}

	accounts := adapter.NewAccountAdapter(accountCfg, tokens, nil)
	bankserv := adapter.NewBankservAdapter(bankservCfg, tokens, uetrs, nil)
	samos := adapter.NewSamosAdapter(samosCfg, tokens, uetrs, nil)

	// One listener carries the payment entry points and the operator
	// endpoints
	api := management.NewAPI(tokens, uetrs,
		accounts.Breakers(), bankserv.Breakers(), samos.Breakers())
	mux := http.NewServeMux()
	api.Register(mux)
	registerClearingRoutes(mux, accounts, bankserv, samos)

	server := &http.Server{
		Addr:    cfg.ManagementAddr,
		Handler: mux,
	}
	go func() {
		log.Printf("Clearing sidecar listening on %s", cfg.ManagementAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed: ", err)
		}
	}()

	// Publish tracking transitions until shutdown
	dispatcher := dispatch.NewTrackingDispatcher(repo, msgBroker, cfg)
	dispatcher.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
}
