package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
	"github.com/loomworks/loom/internal/ui"
)

var createType string

var createCmd = &cobra.Command{
	Use:     "create <id>",
	Short:   "Create a new increment (starts in planning)",
	GroupID: "increments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}

		incType, err := types.ParseIncrementType(createType)
		if err != nil {
			fatal(err)
		}

		inc := types.NewIncrement(args[0], incType, time.Now())
		if err := ws.guard.Create(inc); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(inc)
			return
		}
		fmt.Printf("%s Created %s (%s, %s)\n",
			ui.RenderPassIcon(), inc.ID, inc.Type, ui.RenderStatus(inc.Status))
	},
}

func init() {
	createCmd.Flags().StringVarP(&createType, "type", "t", "feature",
		"Increment type (feature, bug, hotfix, change-request, refactor, experiment)")
	rootCmd.AddCommand(createCmd)
}
