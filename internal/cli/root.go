package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/queryplane/internal/control"
	"github.com/vietddude/queryplane/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "queryplane",
	Short: "Dashboard data-fetching control plane",
	Long: `queryplane caches dashboard API reads, coalesces identical requests,
retries transient failures and records the ones that need attention.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane with its health and metrics server",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (defaults from environment when empty)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads .env, loads the config and initialises logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	var cfg *config.AppConfig
	if cfgPath == "" {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			stylelog.InitDefault()
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
	}

	slogLevel := slog.LevelInfo
	if isDebug {
		slogLevel = slog.LevelDebug
	} else {
		_ = slogLevel.UnmarshalText([]byte(cfg.Logging.Level))
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize App", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start App", "error", err)
		os.Exit(1)
	}

	slog.Info("queryplane started", "config", cfgPath)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
