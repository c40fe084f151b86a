package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Subloop/Subloop/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("subloop %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and local state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, err := config.ConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		printHeader("Status")
		fmt.Printf("Version:     %s\n", version)
		fmt.Printf("Config:      %s %s\n", cfgPath, presence(cfgPath))
		fmt.Printf("Model:       %s/%s\n", cfg.Model.Provider, cfg.Model.Name)
		fmt.Printf("Workspace:   %s %s\n", cfg.Paths.Workspace, presence(cfg.Paths.Workspace))
		fmt.Printf("Run state:   %s %s\n", cfg.Paths.RunState, presence(cfg.Paths.RunState))
		fmt.Printf("Timeline DB: %s %s\n", cfg.Paths.TimelineDB, presence(cfg.Paths.TimelineDB))
		fmt.Printf("Unattended:  %v\n", cfg.Approval.Unattended)
		fmt.Printf("Limits:      %d turns, %dm timeout, %dMB, %dm CPU\n",
			cfg.Limits.MaxTurns, cfg.Limits.TimeoutMinutes, cfg.Limits.MaxMemoryMB, cfg.Limits.MaxCPUMinutes)
		if cfg.Trace.Enabled {
			fmt.Printf("Trace:       %s -> %s\n", cfg.Trace.Brokers, cfg.Trace.Topic)
		} else {
			fmt.Println("Trace:       disabled")
		}
		return nil
	},
}

func presence(path string) string {
	if _, err := os.Stat(path); err == nil {
		return color.GreenString("(present)")
	}
	return color.YellowString("(missing)")
}
