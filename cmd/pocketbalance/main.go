package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pocketbalance/internal/amqp"
	"pocketbalance/internal/assist"
	"pocketbalance/internal/assist/ollama"
	"pocketbalance/internal/assist/openai"
	"pocketbalance/internal/backend"
	"pocketbalance/internal/cache"
	"pocketbalance/internal/cli"
	"pocketbalance/internal/config"
	apphttp "pocketbalance/internal/http"
	"pocketbalance/internal/ledger"
	"pocketbalance/internal/log"
	"pocketbalance/internal/pkg/grpcserver"
	"pocketbalance/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig()
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	storeBackend, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer storeBackend.Close()

	store := ledger.New(storeBackend.Store,
		ledger.WithKey(cfg.StorageKey),
		ledger.WithLogger(logger))

	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// events are optional; the ledger works without them
			logger.Error("Failed to connect to AMQP, change events disabled", log.FieldError, err)
		} else {
			publisher = client
			logger.Info("AMQP change events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	ledgerSvc := services.NewLedgerService(store, publisher, cfg.Categories, logger)
	defer ledgerSvc.Close()

	caches := cache.NewManager(logger)
	ai := buildAssist(cfg, logger, caches)

	srv := apphttp.NewServer(":"+cfg.Port, ledgerSvc, ai, apphttp.Options{
		Logger:          logger,
		AIRatePerMinute: cfg.AIRatePerMinute,
	})

	var grpcSrv *grpcserver.Server
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcserver.New(cfg.GRPCAddr, logger)
		grpcSrv.ServeWhenReady(ctx, store.Ready())
	}

	g, gctx := errgroup.WithContext(ctx)

	// Load reads the persisted list in the background; requests are served
	// right away and /readyz reports when the list is in.
	g.Go(func() error {
		store.Load(gctx)
		logger.Info("Ledger loaded", log.FieldCount, store.Len(), log.FieldKey, store.Key())
		return nil
	})
	g.Go(func() error {
		caches.Run(gctx, 10*time.Minute)
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting pocketbalance server",
			"port", cfg.Port,
			"backend", backendCfg.Type.String(),
			"ai_provider", cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			return grpcSrv.Start()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext(30 * time.Second)
		defer shutdownCancel()
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return nil
	})

	return g.Wait()
}

// buildAssist picks the configured provider. The suggester is fronted by an
// LRU so repeated descriptions skip the model.
func buildAssist(cfg *config.Config, logger *log.Logger, caches *cache.Manager) *assist.Service {
	var (
		suggester assist.CategorySuggester
		extractor assist.ReceiptExtractor
	)
	switch cfg.AIProvider {
	case config.ProviderOpenAI:
		p := openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, cfg.Categories)
		suggester, extractor = p, p
	case config.ProviderOllama:
		p := ollama.New(cfg.OllamaURL, cfg.OllamaModel, cfg.Categories,
			ollama.WithLogger(zerologFor(cfg)))
		suggester, extractor = p, p
	default:
		logger.Info("AI assistance disabled")
		return assist.NewService(nil, nil, assist.WithServiceLogger(logger))
	}

	lru := cache.NewLRU[string](cfg.SuggestionCacheSize, cfg.SuggestionCacheTTL)
	caches.Register(lru)
	logger.Info("AI assistance enabled", log.FieldProvider, cfg.AIProvider)

	return assist.NewService(
		assist.NewCachedSuggester(suggester, lru),
		extractor,
		assist.WithTimeout(cfg.AITimeout),
		assist.WithMaxConcurrentScans(cfg.AIMaxConcurrentScans),
		assist.WithServiceLogger(logger),
	)
}

func zerologFor(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str(log.FieldComponent, "ollama").
		Logger()
}
