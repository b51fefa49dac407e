package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/config"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "trafficsim",
		Short:   "Coupled signalized intersection simulator",
		Version: version.Version,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to sim.yaml (defaults are used when empty)")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(validateCmd(&configPath))
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.SimConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func validateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and check it without running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if _, err := cfg.ToTrafficConfig(); err != nil {
				return err
			}
			if _, err := buildPolicies(cfg, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d intersections, %d steps per episode\n",
				len(cfg.Simulation.Intersections), cfg.Simulation.MaxSteps)
			return nil
		},
	}
}
