package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/reewild/foodprint/internal/api"
	"github.com/reewild/foodprint/internal/cache"
	"github.com/reewild/foodprint/internal/carbon"
	"github.com/reewild/foodprint/internal/clients"
	"github.com/reewild/foodprint/internal/config"
	"github.com/reewild/foodprint/internal/db"
	"github.com/reewild/foodprint/internal/events"
	"github.com/reewild/foodprint/internal/ratelimit"
	"github.com/reewild/foodprint/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	table, err := loadFactorTable(cfg)
	if err != nil {
		log.Fatalf("emission factors: %v", err)
	}

	llm := clients.NewOpenAIClient(clients.ClientOpts{
		BaseURL:    cfg.OpenAIBaseURL,
		APIKey:     cfg.OpenAIAPIKey,
		HTTPClient: &http.Client{},
	})

	opts := service.EstimatorOpts{
		LLM:         llm,
		Table:       table,
		Gate:        ratelimit.New(cfg.MinInterval(), cfg.RateLimitEnabled),
		Results:     cache.NewResults(),
		Model:       cfg.Model,
		VisionModel: cfg.VisionModel,
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := events.NewEstimateCompletedPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer publisher.Close()
		opts.Publisher = publisher
	}

	handler := api.NewRouter(service.NewEstimator(opts))

	addr := fmt.Sprintf(":%s", cfg.Port)
	slog.Info("foodprint service listening",
		"addr", addr,
		"model", cfg.Model,
		"vision_model", cfg.VisionModel,
		"rate_limit_enabled", cfg.RateLimitEnabled,
		"rate_limit_min_interval", cfg.MinInterval().String(),
	)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// loadFactorTable uses the Postgres-seeded factor set when DB_URL is
// configured and the builtin set otherwise. The connection is only needed
// at startup.
func loadFactorTable(cfg config.Config) (*carbon.Table, error) {
	if cfg.DBURL == "" {
		return carbon.DefaultTable(), nil
	}

	sqlDB, err := sql.Open("postgres", cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(sqlDB); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	factors, err := db.LoadEmissionFactors(ctx, sqlDB)
	if err != nil {
		return nil, err
	}
	slog.Info("emission factors loaded from database", "entries", len(factors))
	return carbon.NewTable(factors), nil
}
