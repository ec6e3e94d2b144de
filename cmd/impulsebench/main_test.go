package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/akmonengine/impulse"
	"github.com/akmonengine/impulse/config"
	"github.com/pkg/errors"
)

func TestBuildScene(t *testing.T) {
	tests := []struct {
		name    string
		scene   string
		count   int
		wantErr error
	}{
		{"stack", "stack", 5, nil},
		{"pile", "pile", 120, nil},
		{"spheres", "spheres", 20, nil},
		{"unknown", "tower", 5, errUnknownScene},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := impulse.NewWorld(config.Default())
			if err != nil {
				t.Fatal(err)
			}

			bodies, err := buildScene(w, tt.scene, tt.count, 1)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("buildScene() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(bodies) != tt.count || w.BodyCount() != tt.count+1 {
				t.Errorf("got %d bodies in a world of %d, want %d", len(bodies), w.BodyCount(), tt.count)
			}
		})
	}
}

func TestRunCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", "--scene", "spheres", "--count", "4", "--steps", "20", "--report-every", "10", "--worlds", "2", "--log-level", "error"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "spheres: 20 steps of 2 worlds") {
		t.Errorf("output = %q", out.String())
	}
}

func TestConfigCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--broadphase", "grid", "--iterations", "4"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), `BroadPhase: (string) (len=4) "grid"`) || !strings.Contains(out.String(), "VelocityIterations: (int) 4") {
		t.Errorf("output = %s", out.String())
	}
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown scene", []string{"run", "--scene", "tower"}},
		{"no steps", []string{"run", "--steps", "0"}},
		{"bad log level", []string{"run", "--log-level", "loud"}},
		{"bad log format", []string{"run", "--log-format", "xml"}},
		{"invalid iterations", []string{"run", "--iterations", "0"}},
		{"missing config file", []string{"run", "--config", "/nonexistent/impulse.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); err == nil {
				t.Error("Execute() should fail")
			}
		})
	}
}
