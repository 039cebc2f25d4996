// entris is a falling-block puzzle game with multiplayer over HTTP.
//
// Usage:
//
//	entris play              - Start the menu, or a game directly with --solo / --join / --create
//	entris serve             - Start the multiplayer HTTP server
//	entris list              - List open games on a server
//	entris watch <id>        - Spectate a game
//	entris scores            - Show local high scores and recent matches
//	entris ssh               - Start an SSH server for remote play
//
// Global flags:
//
//	--config <path>     - Config file (default: search path, then embedded)
//	--db <path>         - Database path (default: from config)
//	--seed <value>      - RNG seed for reproducible solo games
//	--log-level <lvl>   - debug, info, warn, error
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jcharra/Entris/internal/config"
)

var (
	// Global flags
	flagConfig   string
	flagDBPath   string
	flagSeed     int64
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "entris",
	Short: "Entris - falling blocks, alone or against friends",
	Long: `Entris is a falling-block puzzle game for the terminal.

Clear rows to score in solo mode, or join an online game where every
cleared row lands as a penalty row on your opponents' boards.

Available commands:
  play     - Play solo or online
  serve    - Start the multiplayer server
  list     - List games on a server
  watch    - Spectate a running game
  scores   - View high scores
  ssh      - Host the game over SSH

Examples:
  entris play
  entris play --solo --difficulty hard
  entris serve --addr :8090
  entris play --create --size 3
  entris watch 4711`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to scores database (default from config)")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "RNG seed (0 = random based on time)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (default from config)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(sshCmd)
}

// loadConfig reads the config file and applies the global flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

// newLogger creates a component logger at the configured level.
func newLogger(w io.Writer, prefix string, cfg config.Config) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
