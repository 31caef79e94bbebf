package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/testherd/internal/config"
	"github.com/me/testherd/internal/engine"
	"github.com/me/testherd/internal/logging"
	"github.com/me/testherd/internal/scheduler"
	"github.com/me/testherd/internal/server"
	"github.com/me/testherd/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()

	configFile := flag.String("config", "", "Path to YAML config file (flags win over file values)")

	// Pre-scan for --config so file values become flag defaults.
	for i, arg := range os.Args[1:] {
		if arg == "--config" || arg == "-config" {
			if i+2 <= len(os.Args[1:]) {
				if err := cfg.LoadFile(os.Args[i+2]); err != nil {
					fmt.Fprintf(os.Stderr, "load config: %v\n", err)
					os.Exit(1)
				}
			}
		}
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.testherd/testherd.db)")
	flag.DurationVar(&cfg.LeaseTimeout, "lease-timeout", cfg.LeaseTimeout, "How long a dispatched test may stay in flight")
	flag.IntVar(&cfg.MaxFailures, "max-failures", cfg.MaxFailures, "Retry bound before a test is abandoned")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	if *configFile != "" {
		logger.Info("config file loaded", "path", *configFile)
	}

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".testherd")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "testherd.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	// Build the engine and rebuild in-memory state from the store.
	eng := engine.New(st, scheduler.Config{
		LeaseTimeout: cfg.LeaseTimeout,
		MaxFailures:  cfg.MaxFailures,
	}, logger)

	if err := eng.Bootstrap(context.Background()); err != nil {
		// Degraded: the HTTP server still comes up so /healthz can report
		// the state, but dispatch requests are rejected.
		logger.Error("bootstrap failed, serving degraded", "error", err)
	}

	srv := server.New(cfg, eng, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}

	// Let in-flight background store writes land before closing the store.
	eng.Flush()
	logger.Info("server stopped")
}
