package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/synclog"
	"github.com/loomworks/loom/internal/ui"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:     "log [id]",
	Short:   "Show the sync event log",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}

		var events []synclog.Event
		if len(args) == 1 {
			events, err = ws.log.ForIncrement(args[0])
		} else {
			events, err = ws.log.Read()
		}
		if err != nil {
			fatal(err)
		}

		if logLimit > 0 && len(events) > logLimit {
			events = events[len(events)-logLimit:]
		}

		if jsonOutput {
			outputJSON(events)
			return
		}
		if len(events) == 0 {
			fmt.Println("No sync events.")
			return
		}

		for _, ev := range events {
			icon := ui.RenderPassIcon()
			switch ev.Outcome {
			case synclog.OutcomeError:
				icon = ui.RenderFailIcon()
			case synclog.OutcomePending:
				icon = ui.RenderWarnIcon()
			case synclog.OutcomeNoop:
				icon = ui.RenderInfoIcon()
			}
			line := fmt.Sprintf("%s %s %-24s %s local=%s remote=%s",
				icon,
				ui.RenderMuted(ev.Time.Local().Format(time.RFC3339)),
				ev.IncrementID, ev.Tracker, ev.LocalStatus, ev.RemoteStatus)
			if ev.ResolvedStatus != "" {
				line += fmt.Sprintf(" resolved=%s (%s)", ev.ResolvedStatus, ev.Strategy)
			}
			if ev.Error != "" {
				line += " " + ui.RenderFail(ev.Error)
			}
			fmt.Println(line)
		}
	},
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "Show only the last N events")
	rootCmd.AddCommand(logCmd)
}
