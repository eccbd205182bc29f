// Command trekka runs the Trekka travel assistant HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/trekka"
	"github.com/hupe1980/trekka/api"
	"github.com/hupe1980/trekka/config"
	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/encyclopedia"
	"github.com/hupe1980/trekka/engine"
	"github.com/hupe1980/trekka/handler"
	"github.com/hupe1980/trekka/knowledge"
	"github.com/hupe1980/trekka/logging"
	"github.com/hupe1980/trekka/metrics"
	"github.com/hupe1980/trekka/model"
	"github.com/hupe1980/trekka/model/anthropic"
	"github.com/hupe1980/trekka/model/openai"
	"github.com/hupe1980/trekka/search"
	"github.com/hupe1980/trekka/store"
	"github.com/hupe1980/trekka/threadstate"
	"github.com/hupe1980/trekka/weather"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to a .env file (optional)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("loading %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewSlogLogger(level, cfg.Logging.Format, cfg.Logging.AddSource)

	llm, err := newModel(cfg.Model)
	if err != nil {
		return err
	}

	var conversations core.ConversationStore
	if cfg.Database.Path != "" {
		db, err := store.NewSQLiteStore(cfg.Database.Path, func(o *store.Options) {
			o.Logger = logger.WithComponent("store")
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		conversations = db
	} else {
		logger.Warn("database.path is empty, conversations will not survive a restart")
		conversations = store.NewMemoryStore()
	}

	index := knowledge.NewInMemoryIndex()
	if cfg.Knowledge.Dir != "" {
		n, err := index.LoadDir(cfg.Knowledge.Dir)
		if err != nil {
			return fmt.Errorf("loading knowledge base: %w", err)
		}
		logger.Info("knowledge base loaded", "dir", cfg.Knowledge.Dir, "passages", n)
	}

	rec := metrics.NewPrometheus()

	tk, err := trekka.New(llm, func(o *trekka.Options) {
		o.EngineConfig = engine.Config{
			ServiceTimeout: cfg.Engine.ServiceTimeout,
			SystemPrompt:   engine.DefaultSystemPrompt,
			MaxTitleWords:  cfg.Engine.MaxTitleWords,
		}
		if cfg.Engine.SystemPrompt != "" {
			o.EngineConfig.SystemPrompt = cfg.Engine.SystemPrompt
		}

		o.Handler = handlerOptions(cfg, logger.WithComponent("handler"))
		o.States = threadstate.New(func(so *threadstate.Options) {
			so.LockTimeout = cfg.Engine.LockTimeout
			so.IdleTTL = cfg.Engine.IdleTTL
			if cfg.Engine.CleanupInterval > 0 {
				so.CleanupInterval = cfg.Engine.CleanupInterval
			}
			so.Logger = logger.WithComponent("threadstate")
		})
		o.Conversations = conversations
		o.Retriever = index
		o.Searcher, o.Weather, o.Encyclopedia = newServices(cfg, logger)
		o.Logger = logger.WithComponent("engine")
		o.Metrics = rec
	})
	if err != nil {
		return err
	}

	srv := api.NewServer(tk, func(o *api.Options) {
		o.Addr = cfg.Server.Addr
		o.ShutdownTimeout = cfg.Server.ShutdownTimeout
		o.Logger = logger.WithComponent("api")
		if cfg.Metrics.Enabled {
			o.MetricsHandler = promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})
			o.MetricsPath = cfg.Metrics.Path
		}
	})

	logger.Info("starting trekka", "provider", cfg.Model.Provider, "model", llm.Info().Name)
	return srv.Run(ctx)
}

func newModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.APIKey
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
		}), nil
	case config.ProviderMock:
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// newServices builds the capability clients whose keys are configured.
func newServices(cfg *config.Config, logger logging.Logger) (core.Searcher, core.WeatherService, core.Encyclopedia) {
	var (
		searcher core.Searcher
		forecast core.WeatherService
		wiki     core.Encyclopedia
	)
	if cfg.Search.APIKey != "" {
		searcher = search.New(cfg.Search.APIKey, func(o *search.Options) {
			if cfg.Search.Endpoint != "" {
				o.Endpoint = cfg.Search.Endpoint
			}
			if cfg.Search.Depth != "" {
				o.Depth = cfg.Search.Depth
			}
			o.Logger = logger
		})
	} else {
		logger.Warn("search.api_key is empty, web search and news are disabled")
	}
	if cfg.Weather.APIKey != "" {
		forecast = weather.New(cfg.Weather.APIKey, func(o *weather.Options) {
			if cfg.Weather.BaseURL != "" {
				o.BaseURL = cfg.Weather.BaseURL
			}
			if cfg.Weather.Country != "" {
				o.Country = cfg.Weather.Country
			}
		})
	}
	if cfg.Encyclopedia.Enabled {
		wiki = encyclopedia.New(func(o *encyclopedia.Options) {
			if cfg.Encyclopedia.BaseURL != "" {
				o.BaseURL = cfg.Encyclopedia.BaseURL
			}
			if cfg.Encyclopedia.Sentences > 0 {
				o.Sentences = cfg.Encyclopedia.Sentences
			}
			if cfg.Encyclopedia.UserAgent != "" {
				o.UserAgent = cfg.Encyclopedia.UserAgent
			}
		})
	}
	return searcher, forecast, wiki
}

func handlerOptions(cfg *config.Config, logger logging.Logger) handler.Options {
	opts := handler.DefaultOptions()
	opts.Logger = logger
	opts.ServiceTimeout = cfg.Engine.ServiceTimeout
	if cfg.Knowledge.TopK > 0 {
		opts.KnowledgeTopK = cfg.Knowledge.TopK
	}
	if cfg.Search.MaxResults > 0 {
		opts.SearchMaxResults = cfg.Search.MaxResults
	}
	if cfg.Weather.Days > 0 {
		opts.ForecastDays = cfg.Weather.Days
	}
	if cfg.News.QueryPrefix != "" {
		opts.NewsQueryPrefix = cfg.News.QueryPrefix
	}
	if cfg.News.MaxResults > 0 {
		opts.NewsMaxResults = cfg.News.MaxResults
	}
	if len(cfg.News.Domains) > 0 {
		opts.NewsDomains = cfg.News.Domains
	}
	return opts
}
