package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/entris.yaml
var defaultYAML []byte

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Game: GameConfig{
			Width:           20,
			Height:          25,
			DuckProbability: 0.01,
			QueueSize:       10,
			TickRate:        30,
			Drop: DropConfig{
				Base: 500 * time.Millisecond,
				Min:  50 * time.Millisecond,
				Step: 25 * time.Millisecond,
			},
			Scoring: ScoringConfig{
				LineFactor:     35,
				FirstThreshold: 20000,
				ThresholdStep:  50000,
			},
		},
		Server: ServerConfig{
			Addr:             ":8090",
			PlayerTimeout:    5 * time.Second,
			UnstartedTimeout: 180 * time.Second,
			MaxGames:         100,
			CleanupPeriod:    30 * time.Second,
			RequestTimeout:   10 * time.Second,
			WatchInterval:    time.Second,
			PieceBatch:       10,
			Defaults: NewGameConfig{
				Size:            2,
				Dimensions:      "20x25",
				DuckProbability: 0.01,
			},
		},
		Client: ClientConfig{
			ServerURL:        "http://localhost:8090",
			PollInterval:     time.Second,
			RegisterAttempts: 3,
			RetryDelay:       time.Second,
			RequestTimeout:   5 * time.Second,
			LowWater:         10,
			LogFile:          "~/.entris/client.log",
		},
		Storage: StorageConfig{
			DBPath: "~/.entris/scores.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return defaultYAML
}
