package entris

import (
	"time"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/core"
)

// Rules are the fixed parameters of one game session.
type Rules struct {
	Width           int
	Height          int
	DuckProbability float64
	QueueSize       int

	BaseDrop time.Duration
	MinDrop  time.Duration
	DropStep time.Duration

	LineFactor     int
	FirstThreshold int
	ThresholdStep  int

	StartLevel int
	Leveling   bool // false keeps the level, and gravity, fixed
}

// RulesFromConfig builds rules from the game section of the configuration.
func RulesFromConfig(c config.GameConfig) Rules {
	return Rules{
		Width:           c.Width,
		Height:          c.Height,
		DuckProbability: c.DuckProbability,
		QueueSize:       c.QueueSize,
		BaseDrop:        c.Drop.Base,
		MinDrop:         c.Drop.Min,
		DropStep:        c.Drop.Step,
		LineFactor:      c.Scoring.LineFactor,
		FirstThreshold:  c.Scoring.FirstThreshold,
		ThresholdStep:   c.Scoring.ThresholdStep,
		Leveling:        true,
	}
}

// DefaultRules returns the rules of the built-in configuration.
func DefaultRules() Rules {
	return RulesFromConfig(config.Default().Game)
}

// WithPreset applies a solo difficulty preset.
func (r Rules) WithPreset(p config.DifficultyPreset) Rules {
	r.StartLevel = config.StartLevelForPreset(p)
	r.Leveling = !config.IsFixedPreset(p)
	return r
}

// normalized clamps the board into the supported range and fills zero values.
func (r Rules) normalized() Rules {
	d := DefaultRules()
	r.Width = core.Clamp(r.Width, config.MinBoardWidth, config.MaxBoardWidth)
	r.Height = core.Clamp(r.Height, config.MinBoardHeight, config.MaxBoardHeight)
	if r.QueueSize <= 0 {
		r.QueueSize = DefaultQueueSize
	}
	if r.BaseDrop <= 0 {
		r.BaseDrop = d.BaseDrop
	}
	if r.MinDrop <= 0 {
		r.MinDrop = d.MinDrop
	}
	if r.LineFactor <= 0 {
		r.LineFactor = d.LineFactor
	}
	if r.FirstThreshold <= 0 {
		r.FirstThreshold = d.FirstThreshold
	}
	if r.ThresholdStep <= 0 {
		r.ThresholdStep = d.ThresholdStep
	}
	r.StartLevel = max(r.StartLevel, 0)
	return r
}

// DropInterval returns the gravity interval at the given level.
func (r Rules) DropInterval(level int) time.Duration {
	return max(r.MinDrop, r.BaseDrop-time.Duration(level)*r.DropStep)
}

// LinePoints returns the score for clearing n rows at once.
func (r Rules) LinePoints(n int) int {
	p := n * r.LineFactor
	return p * p
}
