package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/guard"
	"github.com/loomworks/loom/internal/ui"
)

var doctorFixStrategy string

// doctorFinding is one increment's consistency check result.
type doctorFinding struct {
	ID       string `json:"id"`
	OK       bool   `json:"ok"`
	Problem  string `json:"problem,omitempty"`
	Repaired bool   `json:"repaired,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Check every increment for record/document desync",
	GroupID: "sync",
	Long: `Check that metadata.json and spec.md agree on every increment's status.

A missing artifact is repaired automatically from its surviving twin. A
status mismatch between the two is only reported; pass --fix record or
--fix document to overwrite one side with the other.`,
	Run: func(cmd *cobra.Command, args []string) {
		if doctorFixStrategy != "" && doctorFixStrategy != "record" && doctorFixStrategy != "document" {
			fatal(fmt.Errorf("--fix must be record or document, got %q", doctorFixStrategy))
		}

		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}
		ids, err := ws.guard.List()
		if err != nil {
			fatal(err)
		}

		findings := make([]doctorFinding, 0, len(ids))
		broken := 0
		for _, id := range ids {
			finding := doctorFinding{ID: id, OK: true}

			err := ws.guard.Validate(id)
			var desync *guard.DesyncError
			switch {
			case err == nil:
				// Validate repairs a missing artifact itself.
			case errors.As(err, &desync):
				finding.OK = false
				finding.Problem = fmt.Sprintf("metadata.json says %q, spec.md says %q",
					desync.RecordStatus, desync.DocumentStatus)
				if doctorFixStrategy != "" {
					winner := desync.RecordStatus
					if doctorFixStrategy == "document" {
						winner = desync.DocumentStatus
					}
					if err := ws.guard.WriteStatus(id, winner); err != nil {
						finding.Problem += "; repair failed: " + err.Error()
					} else {
						finding.Repaired = true
					}
				}
			default:
				finding.OK = false
				finding.Problem = err.Error()
			}

			if !finding.OK && !finding.Repaired {
				broken++
			}
			findings = append(findings, finding)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"healthy":  broken == 0,
				"findings": findings,
			})
			if broken > 0 {
				os.Exit(1)
			}
			return
		}

		for _, finding := range findings {
			switch {
			case finding.OK:
				fmt.Printf("%s %s\n", ui.RenderPassIcon(), finding.ID)
			case finding.Repaired:
				fmt.Printf("%s %s: %s (repaired)\n", ui.RenderWarnIcon(), finding.ID, finding.Problem)
			default:
				fmt.Printf("%s %s: %s\n", ui.RenderFailIcon(), finding.ID, finding.Problem)
			}
		}
		fmt.Println(ui.RenderSeparator())
		if broken == 0 {
			fmt.Printf("%s %d increments checked, all consistent\n", ui.RenderPassIcon(), len(findings))
			return
		}
		fmt.Printf("%s %d of %d increments need attention\n", ui.RenderFailIcon(), broken, len(findings))
		if doctorFixStrategy == "" {
			fmt.Println(ui.RenderMuted("Re-run with --fix record (trust metadata.json) or --fix document (trust spec.md)"))
		}
		os.Exit(1)
	},
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFixStrategy, "fix", "", "Repair desyncs by trusting one artifact (record|document)")
	rootCmd.AddCommand(doctorCmd)
}
