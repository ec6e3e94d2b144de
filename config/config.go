// Package config holds the tuning values of a physics world.
//
// A Config is passed by value to the world at construction; the detection and solver
// components read their thresholds from it.
package config

import (
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate and Load
var ErrInvalidConfig = errors.New("invalid configuration")

// Broad-phase spatial indexes
const (
	BroadPhaseTree = "tree"
	BroadPhaseGrid = "grid"
)

// Config contains the settings of a world
type Config struct {
	Gravity          mgl64.Vec3
	IsGravityEnabled bool

	// Solver
	VelocityIterations           int
	IsSplitImpulseActive         bool
	Baumgarte                    float64
	BaumgarteSplit               float64
	Slop                         float64
	RestitutionVelocityThreshold float64

	// Contacts
	PersistentContactDistance   float64
	ContactManifoldSimilarAngle float64 // cosine of the angle between similar normals
	DuplicatePointDistance      float64

	// Broad phase
	FatAABBMargin          float64
	DisplacementMultiplier float64
	BroadPhase             string
	GridCellSize           float64
	GridCells              int

	// Sleep
	IsSleepingEnabled    bool
	SleepLinearVelocity  float64
	SleepAngularVelocity float64 // radians per second
	TimeBeforeSleep      float64

	// Materials of colliders created without one
	DefaultFriction   float64
	DefaultBounciness float64

	Logger *slog.Logger
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Gravity:          mgl64.Vec3{0, -9.81, 0},
		IsGravityEnabled: true,

		VelocityIterations:           10,
		IsSplitImpulseActive:         true,
		Baumgarte:                    0.2,
		BaumgarteSplit:               0.2,
		Slop:                         0.01,
		RestitutionVelocityThreshold: 0.5,

		PersistentContactDistance:   0.03,
		ContactManifoldSimilarAngle: 0.95,
		DuplicatePointDistance:      0.01,

		FatAABBMargin:          0.1,
		DisplacementMultiplier: 1.7,
		BroadPhase:             BroadPhaseTree,
		GridCellSize:           2.0,
		GridCells:              4096,

		IsSleepingEnabled:    true,
		SleepLinearVelocity:  0.02,
		SleepAngularVelocity: 3.0 * math.Pi / 180.0,
		TimeBeforeSleep:      1.0,

		DefaultFriction:   0.3,
		DefaultBounciness: 0.5,

		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Validate checks the ranges of the settings
func (c Config) Validate() error {
	switch {
	case c.VelocityIterations < 1:
		return errors.Wrapf(ErrInvalidConfig, "velocity iterations must be at least 1, got %d", c.VelocityIterations)
	case c.Baumgarte < 0 || c.Baumgarte > 1:
		return errors.Wrapf(ErrInvalidConfig, "baumgarte must be in [0, 1], got %v", c.Baumgarte)
	case c.BaumgarteSplit < 0 || c.BaumgarteSplit > 1:
		return errors.Wrapf(ErrInvalidConfig, "baumgarte split must be in [0, 1], got %v", c.BaumgarteSplit)
	case c.Slop < 0:
		return errors.Wrapf(ErrInvalidConfig, "slop must be positive, got %v", c.Slop)
	case c.RestitutionVelocityThreshold < 0:
		return errors.Wrapf(ErrInvalidConfig, "restitution velocity threshold must be positive, got %v", c.RestitutionVelocityThreshold)
	case c.PersistentContactDistance <= 0:
		return errors.Wrapf(ErrInvalidConfig, "persistent contact distance must be greater than 0, got %v", c.PersistentContactDistance)
	case c.ContactManifoldSimilarAngle < -1 || c.ContactManifoldSimilarAngle > 1:
		return errors.Wrapf(ErrInvalidConfig, "contact manifold similar angle is a cosine, got %v", c.ContactManifoldSimilarAngle)
	case c.DuplicatePointDistance < 0:
		return errors.Wrapf(ErrInvalidConfig, "duplicate point distance must be positive, got %v", c.DuplicatePointDistance)
	case c.FatAABBMargin < 0:
		return errors.Wrapf(ErrInvalidConfig, "fat AABB margin must be positive, got %v", c.FatAABBMargin)
	case c.DisplacementMultiplier < 0:
		return errors.Wrapf(ErrInvalidConfig, "displacement multiplier must be positive, got %v", c.DisplacementMultiplier)
	case c.BroadPhase != BroadPhaseTree && c.BroadPhase != BroadPhaseGrid:
		return errors.Wrapf(ErrInvalidConfig, "unknown broad phase %q", c.BroadPhase)
	case c.BroadPhase == BroadPhaseGrid && (c.GridCellSize <= 0 || c.GridCells < 1):
		return errors.Wrapf(ErrInvalidConfig, "grid needs a positive cell size and cell count, got %v and %d", c.GridCellSize, c.GridCells)
	case c.SleepLinearVelocity < 0 || c.SleepAngularVelocity < 0 || c.TimeBeforeSleep < 0:
		return errors.Wrap(ErrInvalidConfig, "sleep thresholds must be positive")
	case c.DefaultFriction < 0:
		return errors.Wrapf(ErrInvalidConfig, "default friction must be positive, got %v", c.DefaultFriction)
	case c.DefaultBounciness < 0 || c.DefaultBounciness > 1:
		return errors.Wrapf(ErrInvalidConfig, "default bounciness must be in [0, 1], got %v", c.DefaultBounciness)
	}

	return nil
}

// SetDefaults registers the default settings in v, under the keys read by FromViper
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("gravity", []float64{d.Gravity.X(), d.Gravity.Y(), d.Gravity.Z()})
	v.SetDefault("gravity_enabled", d.IsGravityEnabled)
	v.SetDefault("solver.velocity_iterations", d.VelocityIterations)
	v.SetDefault("solver.split_impulse", d.IsSplitImpulseActive)
	v.SetDefault("solver.baumgarte", d.Baumgarte)
	v.SetDefault("solver.baumgarte_split", d.BaumgarteSplit)
	v.SetDefault("solver.slop", d.Slop)
	v.SetDefault("solver.restitution_velocity_threshold", d.RestitutionVelocityThreshold)
	v.SetDefault("contact.persistent_distance", d.PersistentContactDistance)
	v.SetDefault("contact.similar_angle", d.ContactManifoldSimilarAngle)
	v.SetDefault("contact.duplicate_distance", d.DuplicatePointDistance)
	v.SetDefault("broadphase.type", d.BroadPhase)
	v.SetDefault("broadphase.margin", d.FatAABBMargin)
	v.SetDefault("broadphase.displacement_multiplier", d.DisplacementMultiplier)
	v.SetDefault("broadphase.cell_size", d.GridCellSize)
	v.SetDefault("broadphase.cells", d.GridCells)
	v.SetDefault("sleep.enabled", d.IsSleepingEnabled)
	v.SetDefault("sleep.linear_velocity", d.SleepLinearVelocity)
	v.SetDefault("sleep.angular_velocity", d.SleepAngularVelocity)
	v.SetDefault("sleep.time", d.TimeBeforeSleep)
	v.SetDefault("material.friction", d.DefaultFriction)
	v.SetDefault("material.bounciness", d.DefaultBounciness)
}

// FromViper builds a Config from the keys of v. The logger is left to the caller.
func FromViper(v *viper.Viper) (Config, error) {
	c := Default()

	gravity := v.Get("gravity")
	values, err := toFloats(gravity)
	if err != nil || len(values) != 3 {
		return c, errors.Wrapf(ErrInvalidConfig, "gravity must be a list of 3 numbers, got %v", gravity)
	}
	c.Gravity = mgl64.Vec3{values[0], values[1], values[2]}
	c.IsGravityEnabled = v.GetBool("gravity_enabled")

	c.VelocityIterations = v.GetInt("solver.velocity_iterations")
	c.IsSplitImpulseActive = v.GetBool("solver.split_impulse")
	c.Baumgarte = v.GetFloat64("solver.baumgarte")
	c.BaumgarteSplit = v.GetFloat64("solver.baumgarte_split")
	c.Slop = v.GetFloat64("solver.slop")
	c.RestitutionVelocityThreshold = v.GetFloat64("solver.restitution_velocity_threshold")

	c.PersistentContactDistance = v.GetFloat64("contact.persistent_distance")
	c.ContactManifoldSimilarAngle = v.GetFloat64("contact.similar_angle")
	c.DuplicatePointDistance = v.GetFloat64("contact.duplicate_distance")

	c.BroadPhase = strings.ToLower(v.GetString("broadphase.type"))
	c.FatAABBMargin = v.GetFloat64("broadphase.margin")
	c.DisplacementMultiplier = v.GetFloat64("broadphase.displacement_multiplier")
	c.GridCellSize = v.GetFloat64("broadphase.cell_size")
	c.GridCells = v.GetInt("broadphase.cells")

	c.IsSleepingEnabled = v.GetBool("sleep.enabled")
	c.SleepLinearVelocity = v.GetFloat64("sleep.linear_velocity")
	c.SleepAngularVelocity = v.GetFloat64("sleep.angular_velocity")
	c.TimeBeforeSleep = v.GetFloat64("sleep.time")

	c.DefaultFriction = v.GetFloat64("material.friction")
	c.DefaultBounciness = v.GetFloat64("material.bounciness")

	return c, c.Validate()
}

// Load reads a configuration file (YAML, TOML or JSON). Keys missing from the file keep
// their default, IMPULSE_ environment variables override both, e.g. IMPULSE_SOLVER_SLOP.
// An empty path reads the environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("IMPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Default(), errors.Wrapf(err, "reading %s", path)
		}
	}

	return FromViper(v)
}

// toFloats converts the list types produced by the viper decoders
func toFloats(value interface{}) ([]float64, error) {
	switch list := value.(type) {
	case []float64:
		return list, nil
	case []interface{}:
		values := make([]float64, len(list))
		for i, item := range list {
			switch n := item.(type) {
			case float64:
				values[i] = n
			case int:
				values[i] = float64(n)
			case int64:
				values[i] = float64(n)
			default:
				return nil, errors.Errorf("item %d is not a number: %v", i, item)
			}
		}
		return values, nil
	case string:
		// environment variables: "0,-9.81,0"
		fields := strings.Split(list, ",")
		values := make([]float64, 0, len(fields))
		for _, field := range fields {
			f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %q", field)
			}
			values = append(values, f)
		}
		return values, nil
	}

	return nil, errors.Errorf("unsupported type %T", value)
}
