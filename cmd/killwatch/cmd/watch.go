package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/strixlabs/killwatch/internal/core/config"
	"github.com/strixlabs/killwatch/internal/core/db"
	"github.com/strixlabs/killwatch/internal/engine"
	"github.com/strixlabs/killwatch/internal/types"
)

const Version = "0.1.0"

// watch loads the enabled profiles from the management database, then reads
// normalized events as NDJSON on stdin and writes match batches as NDJSON
// on stdout. The real deployment replaces stdin/stdout with the ingestion
// and notification collaborators; this command is the operational harness
// around the same engine.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Match events from stdin against the stored profiles",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("metrics-addr", "", "prometheus listen address (overrides config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL required (--db-url or KW_WATCHER_DATABASE_URL)")
	}

	logger := newLogger(cfg)
	logger.Info("starting killwatch watcher", "version", Version)

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	registry := prometheus.NewRegistry()

	out := json.NewEncoder(os.Stdout)
	notifier := engine.NotifierFunc(func(_ context.Context, batch engine.MatchBatch) error {
		return out.Encode(batch)
	})

	eng, err := engine.New(engine.Config{
		Workers:        cfg.Workers,
		ProfileTimeout: cfg.ProfileTimeout,
		EventDeadline:  cfg.EventDeadline,
		CacheTTL:       cfg.CacheTTL,
		CacheCapacity:  cfg.CacheCapacity,
	}, registry, engine.WithLogger(logger), engine.WithNotifier(notifier))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	profiles, skipped, err := db.LoadEnabledProfiles(ctx, queries)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	for id, perr := range skipped {
		logger.Warn("skipping unparsable profile", "profile_id", id, "error", perr)
	}
	for _, p := range profiles {
		if err := eng.UpsertProfile(p); err != nil {
			logger.Warn("rejecting invalid profile", "profile_id", string(p.ID), "error", err)
		}
	}
	logger.Info("profiles loaded", "applied", eng.ProfileCount(), "skipped", len(skipped))

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, registry, logger)
	}

	return streamEvents(ctx, eng, logger)
}

// streamEvents decodes one event per line and processes it. Malformed lines
// are logged and skipped; a bad event must never stop the stream.
func streamEvents(ctx context.Context, eng *engine.Engine, logger *slog.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev types.NormalizedEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			logger.Warn("skipping malformed event", "error", err)
			continue
		}
		if _, err := eng.ProcessEvent(ctx, ev); err != nil {
			logger.Warn("event processing failed", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream read: %w", err)
	}
	logger.Info("event stream closed, shutting down")
	return nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err)
	}
}

func newLogger(cfg *config.WatcherConfig) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
