package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Subloop/Subloop/internal/config"
	"github.com/Subloop/Subloop/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to scopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		registry := tools.NewRegistry()
		registry.Register(tools.NewReadFileTool())
		registry.Register(tools.NewListDirTool())
		registry.Register(tools.NewWriteFileTool(func() string { return cfg.Paths.Workspace }))
		registry.Register(tools.NewExecTool(2*time.Minute, cfg.Paths.Workspace))

		all := registry.List()
		sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

		printHeader("Available tools")
		for _, t := range all {
			pref := "confirm"
			if p, ok := cfg.Approval.Preferences[t.Name()]; ok {
				pref = p
			}
			fmt.Printf("  %s  [%s]\n      %s\n", color.GreenString(t.Name()), pref, t.Description())
		}
		return nil
	},
}
