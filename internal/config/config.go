// Package config provides YAML-based configuration loading for the game
// engine, the HTTP server, the network client and local storage.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Board size limits. The rare shape is six cells wide and must spawn at
// the center without touching the edges.
const (
	MinBoardWidth  = 10
	MaxBoardWidth  = 64
	MinBoardHeight = 10
	MaxBoardHeight = 64
)

// Config is the complete configuration file.
type Config struct {
	Game    GameConfig    `yaml:"game"`
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// GameConfig defines the simulation parameters.
type GameConfig struct {
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	DuckProbability float64       `yaml:"duck_probability"`
	QueueSize       int           `yaml:"queue_size"`
	TickRate        int           `yaml:"tick_rate"` // Render/simulate loop rate (Hz)
	Drop            DropConfig    `yaml:"drop"`
	Scoring         ScoringConfig `yaml:"scoring"`
}

// DropConfig defines gravity timing.
type DropConfig struct {
	Base time.Duration `yaml:"base"` // Interval at level 0
	Min  time.Duration `yaml:"min"`  // Floor for any level
	Step time.Duration `yaml:"step"` // Reduction per level
}

// ScoringConfig defines points and level thresholds.
type ScoringConfig struct {
	LineFactor     int `yaml:"line_factor"`     // Clearing n rows scores (n*factor)^2
	FirstThreshold int `yaml:"first_threshold"` // Score that reaches level 1
	ThresholdStep  int `yaml:"threshold_step"`  // Added to the threshold per level
}

// ServerConfig defines the multiplayer HTTP server.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	PlayerTimeout    time.Duration `yaml:"player_timeout"`
	UnstartedTimeout time.Duration `yaml:"unstarted_timeout"`
	MaxGames         int           `yaml:"max_games"`
	CleanupPeriod    time.Duration `yaml:"cleanup_period"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	WatchInterval    time.Duration `yaml:"watch_interval"`
	PieceBatch       int           `yaml:"piece_batch"`
	Defaults         NewGameConfig `yaml:"defaults"`
}

// NewGameConfig holds the values used when a /new request omits them.
type NewGameConfig struct {
	Size            int     `yaml:"size"`
	Dimensions      string  `yaml:"dimensions"`
	DuckProbability float64 `yaml:"duck_probability"`
}

// ClientConfig defines the network client and its sync agent.
type ClientConfig struct {
	ServerURL        string        `yaml:"server_url"`
	ScreenName       string        `yaml:"screen_name"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RegisterAttempts int           `yaml:"register_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	LowWater         int           `yaml:"low_water"` // Fetch more pieces below this many
	LogFile          string        `yaml:"log_file"`
}

// StorageConfig defines local persistence.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LogConfig defines logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Validate checks the configuration for values the components cannot work with.
func (c Config) Validate() error {
	var errs []error

	g := c.Game
	if g.Width < MinBoardWidth || g.Width > MaxBoardWidth {
		errs = append(errs, fmt.Errorf("game.width %d outside [%d, %d]", g.Width, MinBoardWidth, MaxBoardWidth))
	}
	if g.Height < MinBoardHeight || g.Height > MaxBoardHeight {
		errs = append(errs, fmt.Errorf("game.height %d outside [%d, %d]", g.Height, MinBoardHeight, MaxBoardHeight))
	}
	if g.DuckProbability < 0 || g.DuckProbability > 1 {
		errs = append(errs, fmt.Errorf("game.duck_probability %v outside [0, 1]", g.DuckProbability))
	}
	if g.Drop.Base <= 0 || g.Drop.Min <= 0 || g.Drop.Step < 0 {
		errs = append(errs, errors.New("game.drop intervals must be positive"))
	}
	if g.TickRate <= 0 {
		errs = append(errs, errors.New("game.tick_rate must be positive"))
	}

	s := c.Server
	if s.PlayerTimeout <= 0 || s.UnstartedTimeout <= 0 || s.CleanupPeriod <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	if s.MaxGames <= 0 {
		errs = append(errs, errors.New("server.max_games must be positive"))
	}
	if s.Defaults.DuckProbability < 0 || s.Defaults.DuckProbability > 1 {
		errs = append(errs, fmt.Errorf("server.defaults.duck_probability %v outside [0, 1]", s.Defaults.DuckProbability))
	}

	cl := c.Client
	if cl.PollInterval <= 0 || cl.RequestTimeout <= 0 {
		errs = append(errs, errors.New("client intervals must be positive"))
	}
	if cl.RegisterAttempts <= 0 {
		errs = append(errs, errors.New("client.register_attempts must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
