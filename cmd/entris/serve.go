package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/multiplayer"
	"github.com/jcharra/Entris/internal/server"
	"github.com/jcharra/Entris/internal/storage"
)

var (
	flagServeAddr string
	flagEnvFile   string
	flagNoStore   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the multiplayer HTTP server",
	Long: `Start the HTTP server that hosts online games.

Settings come from the config file, then from a .env file, then from
ENTRIS_* environment variables, then from flags.

Environment:
  ENTRIS_ADDR            - Listen address
  ENTRIS_MAX_GAMES       - Maximum concurrent games
  ENTRIS_PLAYER_TIMEOUT  - Silence after which a player is evicted
  ENTRIS_LOG_LEVEL       - Log level
  ENTRIS_DB_PATH         - Database for finished matches

Examples:
  entris serve
  entris serve --addr :9000
  entris serve --env-file ./prod.env --no-store`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&flagEnvFile, "env-file", ".env", "Environment file to load if present")
	serveCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "Do not record finished matches")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(flagEnvFile); err == nil {
		if err := godotenv.Load(flagEnvFile); err != nil {
			return fmt.Errorf("load %s: %w", flagEnvFile, err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return err
	}
	if flagServeAddr != "" {
		cfg.Server.Addr = flagServeAddr
	}

	logger := newLogger(os.Stderr, "entris-server", cfg)

	reg := multiplayer.NewRegistry(multiplayer.RegistryConfigFrom(cfg.Server), logger.WithPrefix("registry"))
	if !flagNoStore {
		store, err := storage.Open(cfg.Storage.DBPath)
		if err != nil {
			logger.Warn("could not open database, matches will not be recorded", "error", err)
		} else {
			defer store.Close()
			reg.SetResultSaver(store)
		}
	}
	reg.Start()
	defer reg.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(reg, server.ConfigFrom(cfg.Server), logger)
	return srv.ListenAndServe(ctx)
}
