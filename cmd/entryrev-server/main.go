// Command entryrev-server serves revision history and restore over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kilupskalvis/entryrev/internal/app"
	"github.com/kilupskalvis/entryrev/internal/config"
	"github.com/kilupskalvis/entryrev/internal/security"
	"github.com/kilupskalvis/entryrev/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	listen := flag.String("listen", envOrDefault("ENTRYREV_LISTEN", "127.0.0.1:8720"), "Listen address")
	root := flag.String("root", os.Getenv("ENTRYREV_ROOT"), "Directory containing .entryrev (default: search from cwd)")
	logLevel := flag.String("log-level", envOrDefault("ENTRYREV_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("ENTRYREV_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("ENTRYREV_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("ENTRYREV_TLS_KEY"), "TLS key file")
	flag.Parse()

	logger := newLogger(*logLevel, *logFormat)

	var (
		cfg *config.Config
		err error
	)
	if *root != "" {
		cfg, err = config.LoadFrom(*root)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open entries", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	gate, err := a.Gate()
	if err != nil {
		logger.Error("failed to open token ledger", "error", err, "path", cfg.LedgerPath())
		os.Exit(1)
	}

	tokens := server.NewFileTokenStore(cfg.TokensPath(), logger)
	if err := tokens.Load(); err != nil {
		logger.Warn("no token store loaded, creating empty", "error", err)
	}

	h := server.Handler(server.Deps{
		Entries:  a.Entries,
		Manager:  a.Manager,
		Restorer: a.Restorer,
		Renderer: a.Renderer,
		Gate:     gate,
		Auth:     security.StaticAuthorizer(cfg.Capabilities),
		Tokens:   tokens,
	}, server.DefaultConfig(), logger)

	srv := &http.Server{
		Addr:         *listen,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return context.Background() },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting entryrev-server", "listen", *listen, "backend", cfg.Backend)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(logLevel, logFormat string) *slog.Logger {
	var level slog.Level
	switch logLevel {
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
	if logFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
