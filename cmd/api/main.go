package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stylefit/internal/generation"
	"stylefit/internal/http/handlers"
	httpapi "stylefit/internal/http/httpapi"
	"stylefit/internal/infra"
	"stylefit/internal/infra/credentials"
	"stylefit/internal/infra/geoip"
	"stylefit/internal/middleware"
	"stylefit/internal/prompt"
	"stylefit/internal/providers/replicate"
	"stylefit/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	// Token rotation without restart: the database-stored token wins over
	// the environment when the env var is empty.
	apiToken := cfg.ReplicateAPIToken
	if apiToken == "" {
		stored, err := credentials.NewStore(runner).ReplicateAPIToken(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load replicate token")
		}
		apiToken = stored
	}
	if apiToken == "" {
		logger.Fatal().Msg("replicate api token is not configured")
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	catalog := prompt.NewCatalog(runner, logger)
	if err := catalog.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("model catalog refresh failed, prompts use fallback subject")
	}

	predictions := replicate.NewClient(replicate.Options{
		APIToken: apiToken,
		Model:    cfg.ReplicateModel,
		BaseURL:  cfg.ReplicateBaseURL,
		Logger:   logger,
	}, prompt.NewBuilder(catalog))

	store := generation.NewStore(runner)
	gate := generation.NewCreditGate(store, logger)
	fetcher := storage.NewFetcher(files, nil, logger)
	service := generation.NewService(store, predictions, fetcher, gate, cfg.RenderCreditCost, logger)
	orchestrator := generation.NewOrchestrator(predictions, logger, generation.OrchestratorOptions{
		Pacing: cfg.VariationPacing,
	})
	sweeper := generation.NewSweeper(service, store, logger, generation.SweeperOptions{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
		MaxJobAge: cfg.SweepMaxJobAge,
	})
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("sweeper exited")
		}
	}()

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, locale detection uses headers only")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	app := &handlers.App{
		Renders:    service,
		Variations: orchestrator,
		Projects:   store,
		Credits:    gate,
		Files:      files,
		Config:     cfg,
		Logger:     logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:     cfg.JWTSecret,
		DefaultLocale: cfg.DefaultLocale,
		CountryLookup: lookup,
		RateLimit:     cfg.RateLimitPerMin,
		StaticDir:     cfg.StoragePath,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
