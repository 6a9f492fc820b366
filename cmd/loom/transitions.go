package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/lifecycle"
	"github.com/loomworks/loom/internal/types"
	"github.com/loomworks/loom/internal/ui"
)

// transition loads the increment, applies the status change through the
// state machine, and persists both artifacts.
func transition(ws *workspace, id string, to types.Status) (*types.Increment, error) {
	inc, err := ws.guard.Load(id)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.Transition(*inc, to, time.Now())
	if err != nil {
		return nil, err
	}
	if err := ws.guard.Save(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

func reportTransition(inc *types.Increment, verb string) {
	if jsonOutput {
		outputJSON(inc)
		return
	}
	fmt.Printf("%s %s %s (now %s)\n", ui.RenderPassIcon(), verb, inc.ID, ui.RenderStatus(inc.Status))
}

var startCmd = &cobra.Command{
	Use:     "start <id>",
	Short:   "Activate an increment (planning/paused -> active)",
	GroupID: "increments",
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

		all, err := ws.guard.LoadAll()
		if err != nil {
			fatal(err)
		}
		policy := lifecycle.WIPPolicy{Limit: ws.cfg.WIPLimit}
		if err := policy.CheckActivation(inc, all); err != nil {
			var limitErr *lifecycle.WIPLimitError
			if errors.As(err, &limitErr) {
				fatal(fmt.Errorf("%w (hotfixes and bugs bypass the limit)", err))
			}
			fatal(err)
		}

		next, err := transition(ws, args[0], types.StatusActive)
		if err != nil {
			fatal(err)
		}
		reportTransition(next, "Started")
	},
}

var pauseCmd = &cobra.Command{
	Use:     "pause <id>",
	Short:   "Pause an active increment",
	GroupID: "increments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}
		inc, err := transition(ws, args[0], types.StatusPaused)
		if err != nil {
			fatal(err)
		}
		reportTransition(inc, "Paused")
	},
}

var completeCmd = &cobra.Command{
	Use:     "complete <id>",
	Short:   "Mark an active increment completed",
	GroupID: "increments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}
		inc, err := transition(ws, args[0], types.StatusCompleted)
		if err != nil {
			fatal(err)
		}
		reportTransition(inc, "Completed")
	},
}

var abandonCmd = &cobra.Command{
	Use:     "abandon <id>",
	Short:   "Abandon an increment",
	GroupID: "increments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}
		inc, err := transition(ws, args[0], types.StatusAbandoned)
		if err != nil {
			fatal(err)
		}
		reportTransition(inc, "Abandoned")
	},
}

var backlogCmd = &cobra.Command{
	Use:     "backlog <id>",
	Short:   "Move a planning increment to the backlog",
	GroupID: "increments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}
		inc, err := transition(ws, args[0], types.StatusBacklog)
		if err != nil {
			fatal(err)
		}
		reportTransition(inc, "Backlogged")
	},
}

var planCmd = &cobra.Command{
	Use:     "plan <id>",
	Short:   "Pull a backlog increment back into planning",
	GroupID: "increments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}
		inc, err := transition(ws, args[0], types.StatusPlanning)
		if err != nil {
			fatal(err)
		}
		reportTransition(inc, "Planned")
	},
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id>",
	Short:   "Reopen a completed or abandoned increment",
	GroupID: "increments",
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
		next, err := lifecycle.Reopen(*inc, time.Now())
		if err != nil {
			fatal(err)
		}
		if err := ws.guard.Save(&next); err != nil {
			fatal(err)
		}
		reportTransition(&next, "Reopened")
	},
}

func init() {
	rootCmd.AddCommand(startCmd, pauseCmd, completeCmd, abandonCmd, backlogCmd, planCmd, reopenCmd)
}
