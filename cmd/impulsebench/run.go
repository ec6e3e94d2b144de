package main

import (
	"fmt"
	"io"
	"time"

	"github.com/akmonengine/impulse"
	"github.com/akmonengine/impulse/arena"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type runOptions struct {
	scene   string
	count   int
	steps   int
	dt      float64
	worlds  int
	workers int
	every   int
	seed    int64
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step a scene and print the statistics of the first world",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), v, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.scene, "scene", "stack", "scene to build: "+sceneNames())
	flags.IntVar(&opts.count, "count", 10, "number of dynamic bodies")
	flags.IntVar(&opts.steps, "steps", 300, "number of steps")
	flags.Float64Var(&opts.dt, "dt", 1.0/60.0, "time step in seconds")
	flags.IntVar(&opts.worlds, "worlds", 1, "number of copies of the scene stepped in parallel")
	flags.IntVar(&opts.workers, "workers", impulse.DEFAULT_WORKERS, "goroutines stepping the worlds")
	flags.IntVar(&opts.every, "report-every", 60, "steps between two reports, 0 reports the summary only")
	flags.Int64Var(&opts.seed, "seed", 1, "random seed of the scene")

	return cmd
}

type stepStats struct {
	pairs      int
	manifolds  int
	points     int
	islands    int
	sleeping   int
	maxDepth   float64
	lowestBody float64
}

func collectStats(w *impulse.World, bodies []arena.Handle) stepStats {
	s := stepStats{
		pairs:      len(w.ContactPairs()),
		manifolds:  len(w.ContactManifolds()),
		points:     len(w.ContactPoints()),
		islands:    len(w.Islands()),
		lowestBody: 1e300,
	}
	for _, p := range w.ContactPoints() {
		s.maxDepth = max(s.maxDepth, p.Depth)
	}
	for _, h := range bodies {
		body := w.RigidBody(h)
		if body.IsSleeping {
			s.sleeping++
		}
		s.lowestBody = min(s.lowestBody, body.Transform.Position.Y())
	}
	return s
}

func run(out io.Writer, v *viper.Viper, opts runOptions) error {
	if opts.count < 1 || opts.steps < 1 || opts.worlds < 1 || opts.dt <= 0 {
		return errors.New("count, steps, worlds and dt must be positive")
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	worlds := make([]*impulse.World, opts.worlds)
	var bodies []arena.Handle
	for i := range worlds {
		if worlds[i], err = impulse.NewWorld(cfg); err != nil {
			return err
		}
		handles, err := buildScene(worlds[i], opts.scene, opts.count, opts.seed)
		if err != nil {
			return err
		}
		if i == 0 {
			bodies = handles
		}
	}

	contacts := 0
	worlds[0].Events.Subscribe(impulse.COLLISION_ENTER, func(event impulse.Event) {
		contacts++
	})

	cfg.Logger.Info("scene built", "scene", opts.scene, "bodies", worlds[0].BodyCount(), "worlds", opts.worlds, "broadphase", cfg.BroadPhase)

	var elapsed time.Duration
	for step := 1; step <= opts.steps; step++ {
		start := time.Now()
		impulse.StepWorlds(worlds, opts.dt, opts.workers)
		elapsed += time.Since(start)

		if opts.every > 0 && step%opts.every == 0 {
			s := collectStats(worlds[0], bodies)
			fmt.Fprintf(out, "step %5d | pairs %5d | manifolds %5d | points %5d | islands %4d | sleeping %5d | max depth %.4f | lowest %.3f\n",
				step, s.pairs, s.manifolds, s.points, s.islands, s.sleeping, s.maxDepth, s.lowestBody)
		}
	}

	s := collectStats(worlds[0], bodies)
	fmt.Fprintf(out, "%s: %d steps of %d worlds in %v (%v per step), %d contacts started, %d/%d bodies asleep\n",
		opts.scene, opts.steps, opts.worlds, elapsed.Round(time.Microsecond), (elapsed / time.Duration(opts.steps)).Round(time.Microsecond),
		contacts, s.sleeping, len(bodies))

	return nil
}
