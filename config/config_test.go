package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// ============================================================================
// Validation
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "grid broad phase", modify: func(c *Config) { c.BroadPhase = BroadPhaseGrid }},
		{name: "no iteration", modify: func(c *Config) { c.VelocityIterations = 0 }, wantErr: true},
		{name: "baumgarte above 1", modify: func(c *Config) { c.Baumgarte = 1.5 }, wantErr: true},
		{name: "negative slop", modify: func(c *Config) { c.Slop = -0.1 }, wantErr: true},
		{name: "zero persistent distance", modify: func(c *Config) { c.PersistentContactDistance = 0 }, wantErr: true},
		{name: "similar angle out of range", modify: func(c *Config) { c.ContactManifoldSimilarAngle = 2 }, wantErr: true},
		{name: "unknown broad phase", modify: func(c *Config) { c.BroadPhase = "octree" }, wantErr: true},
		{name: "grid without cells", modify: func(c *Config) {
			c.BroadPhase = BroadPhaseGrid
			c.GridCells = 0
		}, wantErr: true},
		{name: "negative sleep time", modify: func(c *Config) { c.TimeBeforeSleep = -1 }, wantErr: true},
		{name: "bounciness above 1", modify: func(c *Config) { c.DefaultBounciness = 1.2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)

			err := c.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil for %s", err, spew.Sdump(c))
			}
		})
	}
}

// ============================================================================
// Loading
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	d := Default()
	if c.Gravity != d.Gravity || c.VelocityIterations != d.VelocityIterations || c.BroadPhase != d.BroadPhase {
		t.Errorf("Load() = %s, want defaults", spew.Sdump(c))
	}
	if c.Logger == nil {
		t.Error("Load() left a nil logger")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impulse.yaml")
	content := []byte(`
gravity: [0, -1.62, 0]
solver:
  velocity_iterations: 20
  split_impulse: false
broadphase:
  type: grid
  cell_size: 4
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Gravity.Y() != -1.62 {
		t.Errorf("Gravity = %v, want (0, -1.62, 0)", c.Gravity)
	}
	if c.VelocityIterations != 20 {
		t.Errorf("VelocityIterations = %d, want 20", c.VelocityIterations)
	}
	if c.IsSplitImpulseActive {
		t.Error("IsSplitImpulseActive = true, want false")
	}
	if c.BroadPhase != BroadPhaseGrid || c.GridCellSize != 4 {
		t.Errorf("broad phase = %s %v, want grid 4", c.BroadPhase, c.GridCellSize)
	}
	// untouched keys keep their default
	if c.Slop != Default().Slop {
		t.Errorf("Slop = %v, want %v", c.Slop, Default().Slop)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("IMPULSE_SOLVER_SLOP", "0.05")
	t.Setenv("IMPULSE_GRAVITY", "0,0,-10")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Slop != 0.05 {
		t.Errorf("Slop = %v, want 0.05", c.Slop)
	}
	if c.Gravity.Z() != -10 {
		t.Errorf("Gravity = %v, want (0, 0, -10)", c.Gravity)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impulse.yaml")
	if err := os.WriteFile(path, []byte("solver:\n  velocity_iterations: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() = %v, want ErrInvalidConfig", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file returned no error")
	}
}
