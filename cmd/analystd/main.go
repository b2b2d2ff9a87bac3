package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/a-yousafzai/ai-analyst-agent/config"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/telemetry"
	"github.com/a-yousafzai/ai-analyst-agent/internal/ingest"
	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
	"github.com/a-yousafzai/ai-analyst-agent/internal/server"
	"github.com/a-yousafzai/ai-analyst-agent/provider"
)

func main() {
	var configPath string
	root := &cobra.Command{Use: "analystd", Short: "AI analyst agent service"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (optional)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return server.Run(cfg)
		},
	}

	consume := &cobra.Command{
		Use:   "consume",
		Short: "Run the alert enrichment consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runConsumer(cfg)
		},
	}

	var migDir, direction string
	var steps int
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run session store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return server.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var eventType, payload string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Publish a test alert onto the ingest stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("payload must be valid JSON")
			}
			rdb, err := newRedis(cfg)
			if err != nil {
				return err
			}
			defer rdb.Close()

			pub := ingest.NewPublisher(rdb)
			id, err := pub.PublishRaw(cmd.Context(), cfg.Ingest.Stream, eventType, "1", json.RawMessage(payload))
			if err != nil {
				return err
			}
			fmt.Printf("published %s to %s\n", id, cfg.Ingest.Stream)
			return nil
		},
	}
	seed.Flags().StringVar(&eventType, "type", "login_failure", "event type")
	seed.Flags().StringVar(&payload, "payload", `{"message": "test alert"}`, "alert payload JSON")

	root.AddCommand(serve, consume, migrate, seed)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runConsumer(cfg *config.Config) error {
	backend, err := search.New(cfg.Search)
	if err != nil {
		return fmt.Errorf("search backend: %w", err)
	}
	llm, err := provider.New(cfg.LLM)
	if err != nil && !errors.Is(err, provider.ErrNotConfigured) {
		return fmt.Errorf("llm provider: %w", err)
	}
	rdb, err := newRedis(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := ingest.NewConsumer(rdb, backend, llm, cfg.Ingest, telemetry.New())
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}
	return rdb, nil
}
