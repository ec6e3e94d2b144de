package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			cfg.Logger = nil

			config := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
			fmt.Fprint(cmd.OutOrStdout(), config.Sdump(cfg))
			return nil
		},
	}
}
