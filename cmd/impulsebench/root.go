package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/akmonengine/impulse/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)
	v.SetEnvPrefix("IMPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "impulsebench",
		Short:         "Step physics scenes and report contact statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("config")
			if path == "" {
				return nil
			}
			v.SetConfigFile(path)
			return errors.Wrapf(v.ReadInConfig(), "reading %s", path)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "configuration file (yaml, toml or json)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("broadphase", config.BroadPhaseTree, "broad phase index: tree or grid")
	flags.Int("iterations", config.Default().VelocityIterations, "solver velocity iterations")
	flags.Bool("sleep", config.Default().IsSleepingEnabled, "let resting islands fall asleep")
	for key, name := range map[string]string{
		"config":                     "config",
		"log_level":                  "log-level",
		"log_format":                 "log-format",
		"broadphase.type":            "broadphase",
		"solver.velocity_iterations": "iterations",
		"sleep.enabled":              "sleep",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newRunCommand(v), newConfigCommand(v))

	return root
}

// loadConfig builds the world configuration from the bound flags, the file and the environment
func loadConfig(v *viper.Viper) (config.Config, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return cfg, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return cfg, errors.Wrap(err, "log level")
	}
	options := &slog.HandlerOptions{Level: level}
	switch format := v.GetString("log_format"); format {
	case "text":
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, options))
	case "json":
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stderr, options))
	default:
		return cfg, errors.Errorf("unknown log format %q", format)
	}

	return cfg, nil
}
