package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/orthoflow/orthoflow/internal/config"
)

var presetsCmd = &cobra.Command{
	Use:   "presets [name]",
	Short: "Print the processing presets",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		presets, err := config.LoadPresets(cfg.Pipeline.PresetsFile)
		if err != nil {
			return err
		}

		var out any = presets
		if len(args) == 1 {
			preset, found := presets[args[0]]
			if !found {
				return fmt.Errorf("unknown preset %q, available: %v", args[0], presets.Names())
			}
			out = preset
		}

		data, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
