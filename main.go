package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pdfbot/internal/config"
	"pdfbot/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pdfbot",
	Short:         "Telegram bot that splits, merges and rasterizes PDF documents",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and its HTTP endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the operation journal tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		if !cfg.Journal.Enabled() {
			return fmt.Errorf("journal driver is not configured")
		}
		db, err := storage.Open(cfg.Journal.Driver, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.Migrate(db, cfg.Journal.Driver); err != nil {
			return err
		}
		logger.WithField("driver", cfg.Journal.Driver).Info("journal migrated")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("PDFBOT_CONFIG"), "path to config.json or config.yaml")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// bootstrap loads .env and the config file and builds the logger.
func bootstrap() (*config.Config, *logrus.Logger, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithField("level", cfg.Log.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return cfg, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
