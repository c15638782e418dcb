package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vastrakart/vastrakart/internal/cart"
	"github.com/vastrakart/vastrakart/internal/catalog"
	"github.com/vastrakart/vastrakart/internal/config"
	"github.com/vastrakart/vastrakart/internal/db"
	"github.com/vastrakart/vastrakart/internal/httpapi"
	"github.com/vastrakart/vastrakart/internal/order"
	"github.com/vastrakart/vastrakart/internal/reconcile"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "vastrakart").Logger()

	log.Info().Msg("VastraKart cart & order service starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	catalogRepo := catalog.NewRepository(dbConn.Pool)
	cartRepo := cart.NewRepository(dbConn.Pool)
	cartSvc := cart.NewService(cartRepo)

	var publisher order.ClearPublisher
	var queue *reconcile.Queue
	if cfg.AMQP.URL != "" {
		queue, err = reconcile.NewQueue(cfg.AMQP.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to broker")
		}
		defer queue.Close()
		publisher = queue

		worker := reconcile.NewWorker(queue, cartSvc)
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Reconcile worker stopped")
			}
		}()
	} else {
		log.Warn().Msg("AMQP_URL not set, cart clear reconciliation disabled")
	}

	orderRepo := order.NewRepository(dbConn.Pool)
	orderSvc := order.NewService(orderRepo, cartSvc, publisher)

	router := httpapi.NewRouter(cartSvc, orderSvc, catalogRepo, tokenVerifierFromEnv())

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

// tokenVerifierFromEnv builds the auth collaborator boundary from AUTH_TOKENS
// and ADMIN_TOKENS, each a comma-separated list of token=userID pairs. Real
// deployments plug a proper verifier in here.
func tokenVerifierFromEnv() httpapi.TokenVerifier {
	verifier := httpapi.StaticTokenVerifier{}

	parse := func(env string, admin bool) {
		for _, pair := range strings.Split(os.Getenv(env), ",") {
			token, rawID, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok {
				continue
			}
			userID, err := uuid.FromString(rawID)
			if err != nil {
				log.Warn().Str("env", env).Str("user_id", rawID).Msg("Skipping token with invalid user id")
				continue
			}
			verifier[token] = httpapi.Identity{UserID: userID, Admin: admin}
		}
	}

	parse("AUTH_TOKENS", false)
	parse("ADMIN_TOKENS", true)

	if len(verifier) == 0 {
		log.Warn().Msg("No AUTH_TOKENS or ADMIN_TOKENS configured, all requests will be rejected")
	}

	return verifier
}
