// Package cli implements the command-line interface for entryrev.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kilupskalvis/entryrev/internal/app"
	"github.com/kilupskalvis/entryrev/internal/config"
	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	App    *app.App
	Log    *slog.Logger
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.App != nil {
		c.App.Close()
	}
}

// Ctx returns a context acting as the configured actor
func (c *cmdContext) Ctx() context.Context {
	return core.WithActor(context.Background(), c.Config.Actor)
}

// initContext loads config and opens the configured backend
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	logger := newLogger()
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		exitError("failed to open entries: %v", err)
	}

	return &cmdContext{Config: cfg, App: a, Log: logger}
}

// newLogger writes warnings to stderr unless ENTRYREV_LOG_LEVEL says otherwise
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch os.Getenv("ENTRYREV_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var rootCmd = &cobra.Command{
	Use:   "entryrev",
	Short: "Entry revision history",
	Long: `entryrev keeps a revision history for form entries. Every edit that
changes an entry stores a snapshot of its previous state, which can be
listed, compared with the current entry, restored or deleted.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(restoreURLCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(tokenCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
