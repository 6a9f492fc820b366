package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
	"github.com/loomworks/loom/internal/ui"
)

var linkCmd = &cobra.Command{
	Use:     "link <id> <tracker> <remote-id>",
	Short:   "Link an increment to an external tracker item",
	GroupID: "sync",
	Long: `Link an increment to an item in a configured tracker.

The tracker name must match a connection in .loom/config.yaml. Linking
resets the sync baseline; the first sync after linking adopts the remote
status as the baseline without raising a conflict.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}

		id, trackerName, remoteID := args[0], args[1], args[2]
		if _, ok := ws.cfg.Trackers[trackerName]; !ok {
			fatal(fmt.Errorf("tracker %q is not configured in config.yaml", trackerName))
		}

		inc, err := ws.guard.Load(id)
		if err != nil {
			fatal(err)
		}
		inc.Tracker = &types.TrackerLink{Name: trackerName, RemoteID: remoteID}
		inc.Touch(time.Now())
		if err := ws.guard.Save(inc); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(inc)
			return
		}
		fmt.Printf("%s Linked %s to %s#%s\n", ui.RenderPassIcon(), id, trackerName, remoteID)
	},
}

var unlinkCmd = &cobra.Command{
	Use:     "unlink <id>",
	Short:   "Remove an increment's tracker link",
	GroupID: "sync",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}

		inc, err := ws.guard.Load(args[0])
		if err != nil {
			fatal(err)
		}
		if inc.Tracker == nil {
			fatal(fmt.Errorf("%s has no tracker link", args[0]))
		}
		inc.Tracker = nil
		inc.Touch(time.Now())
		if err := ws.guard.Save(inc); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(inc)
			return
		}
		fmt.Printf("%s Unlinked %s\n", ui.RenderPassIcon(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(linkCmd, unlinkCmd)
}
