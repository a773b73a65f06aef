package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/logging"
	httpadapter "github.com/aretw0/switchboard/pkg/adapters/http"
	"github.com/aretw0/switchboard/pkg/adapters/memory"
	"github.com/aretw0/switchboard/pkg/adapters/openai"
	redisadapter "github.com/aretw0/switchboard/pkg/adapters/redis"
	"github.com/aretw0/switchboard/pkg/config"
	"github.com/aretw0/switchboard/pkg/observability"
	"github.com/aretw0/switchboard/pkg/persistence/middleware"
	"github.com/aretw0/switchboard/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the turn-processing HTTP gateway",
	Long: `Starts the gateway that receives webhook turn deliveries, processes them
through the lane state machine and returns the spoken response.

Backends come from the environment: REDIS_ADDR (and optional REDIS_PASSWORD)
selects Redis for sessions, leases, budgets and idempotency; without it
everything is kept in process memory, suitable only for a single instance.
OPENAI_API_KEY enables the semantic and assisted routing tiers.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("config-dir")
		port, _ := cmd.Flags().GetString("port")
		logger := buildLogger(cmd)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())

		opts := []switchboard.Option{
			switchboard.WithLogger(logger),
			switchboard.WithMetricsRegistry(reg),
			switchboard.WithEventSink(observability.NewLogSink(logger)),
		}

		var store ports.SessionStore
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			client := backend.NewClient(&backend.Options{
				Addr:     addr,
				Password: os.Getenv("REDIS_PASSWORD"),
			})
			if err := client.Ping(cmd.Context()).Err(); err != nil {
				logger.Error("redis unreachable", "addr", addr, "err", err)
				os.Exit(1)
			}
			store = redisadapter.NewStore(client)
			opts = append(opts,
				switchboard.WithCallLocker(redisadapter.NewLocker(client, "lease")),
				switchboard.WithBudgetLedger(redisadapter.NewLedger(client, "budget")),
				switchboard.WithIdempotencyStore(redisadapter.NewIdempotencyStore(client, "idem")),
			)
			logger.Info("using redis backends", "addr", addr)
		} else {
			store = memory.NewStore()
			logger.Warn("REDIS_ADDR not set, using in-memory backends")
		}

		store, err := wrapSessionStore(store, logger)
		if err != nil {
			logger.Error("session store middleware", "err", err)
			os.Exit(1)
		}
		opts = append(opts, switchboard.WithSessionStore(store))

		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			client, err := openai.New(apiKey)
			if err != nil {
				logger.Error("openai client init failed", "err", err)
				os.Exit(1)
			}
			opts = append(opts,
				switchboard.WithEmbedder(client),
				switchboard.WithCompleter(client),
			)
		} else {
			logger.Warn("OPENAI_API_KEY not set, semantic and assisted tiers disabled")
		}

		source := config.NewCache(config.NewDirLoader(dir))
		engine := switchboard.New(source, opts...)

		handler := httpadapter.NewHandler(engine,
			httpadapter.WithLogger(logger),
			httpadapter.WithGatherer(reg),
		)

		srv := &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("gateway listening", "addr", srv.Addr, "config_dir", dir)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			logger.Error("server error", "err", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			// Give outstanding turns a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("forced close failed", "err", err)
				}
			}
			logger.Info("gateway stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}

func buildLogger(cmd *cobra.Command) *slog.Logger {
	levelName, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")

	level := slog.LevelInfo
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if jsonLogs {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// wrapSessionStore applies the optional persistence middleware. PII masking
// runs before encryption so the masked copy is what gets sealed.
func wrapSessionStore(store ports.SessionStore, logger *slog.Logger) (ports.SessionStore, error) {
	var mws []middleware.Middleware

	if patterns := os.Getenv("SESSION_PII_PATTERNS"); patterns != "" {
		mw, err := middleware.NewPIIMiddleware(strings.Split(patterns, ","))
		if err != nil {
			return nil, fmt.Errorf("SESSION_PII_PATTERNS: %w", err)
		}
		mws = append(mws, mw)
		logger.Info("pii masking enabled for persisted sessions")
	}

	if encoded := os.Getenv("SESSION_ENCRYPTION_KEY"); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("SESSION_ENCRYPTION_KEY: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("SESSION_ENCRYPTION_KEY: want 32 bytes, got %d", len(key))
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
		logger.Info("session encryption at rest enabled")
	}

	return middleware.Chain(store, mws...), nil
}
