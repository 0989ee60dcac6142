package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/crease/internal/config"
	"github.com/andresmejia3/crease/internal/logging"
	"github.com/andresmejia3/crease/internal/store"
	"github.com/spf13/cobra"
)

// storeAnnotation marks how a command uses the run database.
const storeAnnotation = "store"

const (
	storeOptional = "optional" // connect when the store is enabled
	storeRequired = "required" // fail unless a store is configured
	skipConfig    = "skip-config"
)

var (
	// DB is the run database shared by subcommands. It is nil when the store is disabled.
	DB *store.Store
	// Cfg is the loaded configuration with flag overrides applied.
	Cfg *config.Config
	// Log is the process logger.
	Log *slog.Logger

	cfgPath  string
	dbURL    string
	logLevel string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "crease",
	Short:   "Cricket batting biomechanics and coaching video engine",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		cfg, resolved, exists, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		applyRootOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", resolved, err)
		}
		Cfg = cfg

		Log, err = logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		if err != nil {
			return err
		}
		Log.Debug("configuration loaded", "path", resolved, "exists", exists)

		mode := cmd.Annotations[storeAnnotation]
		if mode == "" || (mode == storeOptional && !cfg.Store.Enabled) {
			return nil
		}
		if cfg.Store.URL == "" {
			return fmt.Errorf("%s needs a database: pass --db, set CREASE_DATABASE_URL or POSTGRES_HOST", cmd.Name())
		}
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), cfg.Store.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// the main context may already be cancelled by Ctrl+C
			DB.Close(context.Background())
		}
	},
}

// applyRootOverrides layers the persistent flags and the POSTGRES_* environment over the
// file configuration.
func applyRootOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if dbURL != "" {
		cfg.Store.URL = dbURL
		cfg.Store.Enabled = true
	}
	if cfg.Store.URL == "" {
		cfg.Store.URL = postgresFromEnv()
	}
}

// postgresFromEnv builds a connection string from the POSTGRES_* variables used by the
// compose setup, or returns "" when POSTGRES_HOST is unset.
func postgresFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ~/.config/crease/config.toml or ./crease.toml)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string; enables the run store")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}
