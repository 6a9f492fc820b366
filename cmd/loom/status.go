package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/guard"
	"github.com/loomworks/loom/internal/lifecycle"
	"github.com/loomworks/loom/internal/types"
	"github.com/loomworks/loom/internal/ui"
)

var statusStaleOnly bool

// statusRow is the JSON shape for one increment in status output.
type statusRow struct {
	ID         string              `json:"id"`
	Status     types.Status        `json:"status"`
	Type       types.IncrementType `json:"type"`
	Tracker    string              `json:"tracker,omitempty"`
	RemoteID   string              `json:"remoteId,omitempty"`
	Stale      bool                `json:"stale,omitempty"`
	IdleFor    string              `json:"idleFor,omitempty"`
	Reason     string              `json:"staleReason,omitempty"`
	Desync     string              `json:"desync,omitempty"`
	Archivable bool                `json:"archivable,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status [id]",
	Short:   "Show increment statuses",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}

		var incs []*types.Increment
		if len(args) == 1 {
			inc, err := ws.guard.Load(args[0])
			if err != nil {
				fatal(err)
			}
			incs = []*types.Increment{inc}
		} else {
			incs, err = ws.guard.LoadAll()
			if err != nil {
				fatal(err)
			}
		}

		now := time.Now()
		rows := make([]statusRow, 0, len(incs))
		for _, inc := range incs {
			row := statusRow{ID: inc.ID, Status: inc.Status, Type: inc.Type, Archivable: inc.ArchivalEligible()}
			if inc.Tracker != nil {
				row.Tracker = inc.Tracker.Name
				row.RemoteID = inc.Tracker.RemoteID
			}

			report := ws.cfg.Staleness.Evaluate(inc, now)
			if report.Stale {
				row.Stale = true
				row.IdleFor = report.IdleFor.Round(time.Hour).String()
				row.Reason = report.Reason
			}

			if err := ws.guard.Validate(inc.ID); err != nil {
				var desync *guard.DesyncError
				if errors.As(err, &desync) {
					row.Desync = fmt.Sprintf("metadata.json=%s spec.md=%s",
						desync.RecordStatus, desync.DocumentStatus)
				} else {
					row.Desync = err.Error()
				}
			}

			if statusStaleOnly && !row.Stale {
				continue
			}
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

		if jsonOutput {
			outputJSON(rows)
			return
		}
		if len(rows) == 0 {
			fmt.Println("No increments.")
			return
		}

		wip := lifecycle.CountWIP(incs)
		for _, row := range rows {
			line := fmt.Sprintf("%-24s %-10s %s", row.ID, ui.RenderStatus(row.Status), ui.RenderMuted(string(row.Type)))
			if row.Tracker != "" {
				line += ui.RenderMuted(fmt.Sprintf("  [%s#%s]", row.Tracker, row.RemoteID))
			}
			fmt.Println(line)
			if row.Stale {
				fmt.Printf("  %s stale: %s\n", ui.RenderWarnIcon(), row.Reason)
			}
			if row.Desync != "" {
				fmt.Printf("  %s desync: %s\n", ui.RenderFailIcon(), row.Desync)
			}
		}
		fmt.Println(ui.RenderSeparator())
		limit := ""
		if ws.cfg.WIPLimit > 0 {
			limit = fmt.Sprintf(" of %d", ws.cfg.WIPLimit)
		}
		fmt.Printf("%d in progress%s\n", wip, limit)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusStaleOnly, "stale", false, "Show only stale increments")
	rootCmd.AddCommand(statusCmd)
}
