// Package tuning loads the navigation thresholds from YAML. None of these
// constants have a principled derivation; they are environment-specific and
// validated empirically per world.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Enabled gates the whole navigation subsystem.
	Enabled bool `yaml:"enabled"`

	TickRateHz int `yaml:"tick_rate_hz"`

	// ValidationStrictness is none|basic|standard|strict.
	ValidationStrictness string `yaml:"validation_strictness"`

	// CellSize is the horizontal quantization in world units, shared by
	// the walk grid, cache keys, and the alternative search ring.
	CellSize float64 `yaml:"cell_size"`

	// MoveSpeed is agent travel speed in world units per second.
	MoveSpeed float64 `yaml:"move_speed"`
	// SwimSpeed applies while swimming.
	SwimSpeed float64 `yaml:"swim_speed"`
	// ReachedEpsilon is the distance at which a waypoint counts reached.
	ReachedEpsilon float64 `yaml:"reached_epsilon"`

	Ground   GroundTuning   `yaml:"ground"`
	Liquid   LiquidTuning   `yaml:"liquid"`
	Stuck    StuckTuning    `yaml:"stuck"`
	Recovery RecoveryTuning `yaml:"recovery"`
	Path     PathTuning     `yaml:"path"`
	Cache    CacheTuning    `yaml:"cache"`

	// DebugVerbosity: 0 quiet, 1 state transitions, 2 per-tick detail.
	DebugVerbosity int `yaml:"debug_verbosity"`
}

type GroundTuning struct {
	SnapTolerance float64 `yaml:"snap_tolerance"`
	CliffDrop     float64 `yaml:"cliff_drop"`
	// FallEnterDrop/FallExitDrop form the ground-support hysteresis band.
	FallEnterDrop float64 `yaml:"fall_enter_drop"`
	FallExitDrop  float64 `yaml:"fall_exit_drop"`
}

type LiquidTuning struct {
	SwimEnterDepth float64 `yaml:"swim_enter_depth"`
	SwimExitDepth  float64 `yaml:"swim_exit_depth"`
	SubmergeDepth  float64 `yaml:"submerge_depth"`
	BreathTicks    uint64  `yaml:"breath_ticks"`
}

type StuckTuning struct {
	WindowTicks         uint64  `yaml:"window_ticks"`
	MinMove             float64 `yaml:"min_move"`
	ProgressWindowTicks uint64  `yaml:"progress_window_ticks"`
	MaxFailures         int     `yaml:"max_failures"`
	HistoryCap          int     `yaml:"history_cap"`
}

type RecoveryTuning struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	StepBackDist   float64 `yaml:"step_back_dist"`
	WanderRadius   float64 `yaml:"wander_radius"`
	LastGoodMinAge uint64  `yaml:"last_good_min_age_ticks"`
}

type PathTuning struct {
	DestSearchRadius float64 `yaml:"dest_search_radius"`
	MaxLength        float64 `yaml:"max_length"`
	SmoothEpsilon    float64 `yaml:"smooth_epsilon"`
}

type CacheTuning struct {
	Size       int `yaml:"size"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Defaults are the documented baseline; Load overlays the file on top.
func Defaults() Tuning {
	return Tuning{
		Enabled:              true,
		TickRateHz:           20,
		ValidationStrictness: "standard",
		CellSize:             1.0,
		MoveSpeed:            4.0,
		SwimSpeed:            2.0,
		ReachedEpsilon:       0.35,
		Ground: GroundTuning{
			SnapTolerance: 0.5,
			CliffDrop:     3.0,
			FallEnterDrop: 1.0,
			FallExitDrop:  0.3,
		},
		Liquid: LiquidTuning{
			SwimEnterDepth: 1.2,
			SwimExitDepth:  0.8,
			SubmergeDepth:  1.6,
			BreathTicks:    200,
		},
		Stuck: StuckTuning{
			WindowTicks:         60, // 3000 ms at 20 Hz
			MinMove:             0.5,
			ProgressWindowTicks: 80,
			MaxFailures:         3,
			HistoryCap:          128,
		},
		Recovery: RecoveryTuning{
			MaxAttempts:    5,
			StepBackDist:   2.0,
			WanderRadius:   4.0,
			LastGoodMinAge: 40,
		},
		Path: PathTuning{
			DestSearchRadius: 5.0,
			MaxLength:        512.0,
			SmoothEpsilon:    0.05,
		},
		Cache: CacheTuning{
			Size:       1024,
			TTLSeconds: 30,
		},
	}
}

// Validate rejects configurations that would disable safety behavior by
// accident rather than intent.
func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	}
	if t.Liquid.SwimEnterDepth <= t.Liquid.SwimExitDepth {
		return fmt.Errorf("liquid hysteresis band is inverted: enter %.2f <= exit %.2f",
			t.Liquid.SwimEnterDepth, t.Liquid.SwimExitDepth)
	}
	if t.Ground.FallEnterDrop <= t.Ground.FallExitDrop {
		return fmt.Errorf("ground hysteresis band is inverted: enter %.2f <= exit %.2f",
			t.Ground.FallEnterDrop, t.Ground.FallExitDrop)
	}
	if t.MoveSpeed <= 0 {
		return fmt.Errorf("move_speed must be positive, got %.2f", t.MoveSpeed)
	}
	switch t.ValidationStrictness {
	case "", "none", "basic", "standard", "strict":
	default:
		return fmt.Errorf("unknown validation_strictness %q", t.ValidationStrictness)
	}
	return nil
}
