package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/core"
	"github.com/jcharra/Entris/internal/games/entris"
	"github.com/jcharra/Entris/internal/netplay"
	"github.com/jcharra/Entris/internal/platform/tui"
	"github.com/jcharra/Entris/internal/storage"
)

var (
	flagSolo       bool
	flagDifficulty string
	flagJoin       int
	flagCreate     bool
	flagSize       int
	flagDimensions string
	flagName       string
	flagServerURL  string
	flagOffline    bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play Entris",
	Long: `Start playing. Without flags a menu offers solo games, the online
lobby and the high score tables.

Controls:
  Left/Right/a/d  - Move
  Down/s          - Soft drop
  Space           - Hard drop
  Up/w/x          - Rotate clockwise
  z               - Rotate counter-clockwise
  P               - Pause (solo)
  R               - Restart (solo, after game over)
  Esc/b           - Back to menu (when the game is over)
  Q/Ctrl+C        - Quit

Difficulty options:
  easy   - Slow start
  normal - Default gravity
  hard   - Starts several levels in
  fixed  - No speed-up

Examples:
  entris play
  entris play --solo --difficulty hard
  entris play --create --size 3 --dimensions 16x22
  entris play --join 4711 --name alice
  entris play --server http://example.com:8090`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&flagSolo, "solo", false, "Start a solo game directly")
	playCmd.Flags().StringVar(&flagDifficulty, "difficulty", "normal", "Difficulty preset: easy, normal, hard, fixed")
	playCmd.Flags().IntVar(&flagJoin, "join", 0, "Join the online game with this id")
	playCmd.Flags().BoolVar(&flagCreate, "create", false, "Create an online game and join it")
	playCmd.Flags().IntVar(&flagSize, "size", 0, "Players for --create (default from config)")
	playCmd.Flags().StringVar(&flagDimensions, "dimensions", "", "Board WIDTHxHEIGHT for --create (default from config)")
	playCmd.Flags().StringVar(&flagName, "name", "", "Screen name (default: config, then $USER)")
	playCmd.Flags().StringVar(&flagServerURL, "server", "", "Server URL (default from config)")
	playCmd.Flags().BoolVar(&flagOffline, "offline", false, "Hide online play")
}

func runPlay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Client.ServerURL = serverURL(cfg)

	preset := config.ParseDifficultyPreset(flagDifficulty)
	player := screenName(cfg)
	rt := runtimeConfig(cfg)

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open scores database: %v\n", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagSolo {
		rules := entris.RulesFromConfig(cfg.Game).WithPreset(preset)
		game := entris.New(rules, entris.ModeSolo, seedFor(rt))
		_, err := tui.Run(game, tui.Options{
			Player:     player,
			Difficulty: preset,
			Store:      store,
			Context:    ctx,
			Runtime:    rt,
		})
		return err
	}

	var client *netplay.Client
	if !flagOffline && cfg.Client.ServerURL != "" {
		client = netplay.NewClient(cfg.Client.ServerURL, cfg.Client.RequestTimeout)
	}

	logger, closeLog, err := agentLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if flagJoin != 0 || flagCreate {
		if client == nil {
			return errors.New("online play needs a server url")
		}
		return playOnline(ctx, client, cfg, player, rt, logger)
	}

	return tui.RunSession(tui.SessionOptions{
		Config:  cfg,
		Store:   store,
		Client:  client,
		Logger:  logger,
		Player:  player,
		Runtime: rt,
		Context: ctx,
	})
}

// playOnline creates or joins one game and plays it without the menu.
func playOnline(ctx context.Context, client *netplay.Client, cfg config.Config, player string, rt core.RuntimeConfig, logger *log.Logger) error {
	gameID := flagJoin
	if flagCreate {
		defaults := cfg.Server.Defaults
		if flagSize > 0 {
			defaults.Size = flagSize
		}
		if flagDimensions != "" {
			defaults.Dimensions = flagDimensions
		}
		reqCtx, cancel := context.WithTimeout(ctx, cfg.Client.RequestTimeout)
		summary, err := client.NewGame(reqCtx, defaults.Size, defaults.Dimensions, defaults.DuckProbability)
		cancel()
		if err != nil {
			return fmt.Errorf("create game: %w", err)
		}
		gameID = summary.GameID
		logger.Info("game created", "game_id", gameID, "size", summary.Size)
	}

	game, agent, err := tui.NewOnlineGame(ctx, client, cfg, gameID, player, seedFor(rt), logger)
	if err != nil {
		return fmt.Errorf("join game %d: %w", gameID, err)
	}

	m, err := tui.Run(game, tui.Options{
		Player:  player,
		Agent:   agent,
		Context: ctx,
		Runtime: rt,
	})
	if err != nil {
		return err
	}
	if agentErr := m.AgentErr(); agentErr != nil && !errors.Is(agentErr, context.Canceled) {
		return agentErr
	}
	return nil
}

// screenName picks the player name: flag, config, then $USER.
func screenName(cfg config.Config) string {
	switch {
	case flagName != "":
		return flagName
	case cfg.Client.ScreenName != "":
		return cfg.Client.ScreenName
	}
	return os.Getenv("USER")
}

func runtimeConfig(cfg config.Config) core.RuntimeConfig {
	rt := core.DefaultConfig()
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		rt.ScreenW = w
		rt.ScreenH = h
	}
	rt.TickRate = cfg.Game.TickRate
	rt.Seed = flagSeed
	return rt
}

func seedFor(rt core.RuntimeConfig) uint64 {
	if rt.Seed != 0 {
		return uint64(rt.Seed)
	}
	return uint64(time.Now().UnixNano())
}

// agentLogger writes sync agent logs to the configured file so they do not
// tear the alternate screen. Each run is tagged with a fresh id.
func agentLogger(cfg config.Config) (*log.Logger, func(), error) {
	var (
		w       io.Writer = io.Discard
		closeFn           = func() {}
	)
	if cfg.Client.LogFile != "" {
		path, err := config.ExpandHome(cfg.Client.LogFile)
		if err != nil {
			return nil, nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	}
	logger := newLogger(w, "entris-client", cfg).With("run", uuid.NewString())
	return logger, closeFn, nil
}
