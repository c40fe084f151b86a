package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Subloop/Subloop/internal/config"
	"github.com/Subloop/Subloop/internal/subagent"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past and in-flight scope runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store := subagent.NewRunStore(cfg.Paths.RunState)
		runs := store.Runs()
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, rec := range runs {
			status := rec.Status
			switch status {
			case "SUCCESS":
				status = color.GreenString(status)
			case "ERROR", "failed":
				status = color.RedString(status)
			case "running":
				status = color.YellowString(status)
			}
			fmt.Printf("%s  %s  turns=%d  %s\n",
				rec.CreatedAt.Format(time.RFC3339), rec.RunID, rec.Turns, status)
			if rec.Reason != "" {
				fmt.Printf("    %s\n", rec.Reason)
			}
		}
		return nil
	},
}
