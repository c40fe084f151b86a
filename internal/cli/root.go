package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/Subloop/Subloop/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  ____        _     _\n" +
		" / ___| _   _| |__ | | ___   ___  _ __\n" +
		" \\___ \\| | | | '_ \\| |/ _ \\ / _ \\| '_ \\\n" +
		"  ___) | |_| | |_) | | (_) | (_) | |_) |\n" +
		" |____/ \\__,_|_.__/|_|\\___/ \\___/| .__/\n" +
		"                                 |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "subloop",
	Short: "Subloop - bounded sub-agent runner",
	Long:  color.CyanString(logo) + "\nRuns LLM sub-agent scopes with tool confirmation gating and hard termination limits.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}
