package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/loomworks/loom/internal/synclog"
	"github.com/loomworks/loom/internal/tracker"
	"github.com/loomworks/loom/internal/ui"
)

var (
	syncAll      bool
	syncStrategy string
	syncChoose   string
	syncParallel int
)

var syncCmd = &cobra.Command{
	Use:     "sync [id]",
	Short:   "Synchronize increment status with its tracker",
	GroupID: "sync",
	Long: `Synchronize increment status with the linked tracker item.

Each pass fetches the remote status, compares it against the local one,
and resolves any divergence per the conflict strategy. With prompt-user
(the default) a conflict suspends the pass and asks; pass --choose to
answer non-interactively.

Examples:
  loom sync auth-rework
  loom sync --all
  loom sync auth-rework --strategy remote-wins
  loom sync auth-rework --choose local`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && !syncAll {
			fatal(fmt.Errorf("provide an increment id or --all"))
		}
		if syncChoose != "" && syncChoose != "local" && syncChoose != "remote" {
			fatal(fmt.Errorf("--choose must be local or remote, got %q", syncChoose))
		}

		ws, err := openWorkspace()
		if err != nil {
			fatal(err)
		}
		eng, err := ws.engine(syncStrategy)
		if err != nil {
			fatal(err)
		}

		var results []*tracker.PassResult
		if syncAll {
			results, err = eng.SyncAll(rootCtx, syncParallel)
		} else {
			var result *tracker.PassResult
			result, err = eng.SyncIncrement(rootCtx, args[0])
			if result != nil {
				results = append(results, result)
			}
		}
		if err != nil {
			fatal(err)
		}

		// Settle parked passes: answer from --choose, or prompt on a TTY.
		for i, result := range results {
			if result.PendingToken == "" {
				continue
			}
			decision, ok := pickDecision(eng, result.PendingToken)
			if !ok {
				continue
			}
			resumed, err := eng.Resume(rootCtx, result.PendingToken, decision)
			if err != nil {
				fatal(err)
			}
			results[i] = resumed
		}

		if jsonOutput {
			outputJSON(results)
		} else {
			for _, result := range results {
				printPassResult(result)
			}
		}

		for _, result := range results {
			if result.Err != nil {
				os.Exit(1)
			}
		}
	},
}

// pickDecision answers a parked conflict, either from --choose or by
// prompting. Returns false when no answer is available (non-interactive
// prompt-user); the pass stays parked and the token is printed.
func pickDecision(eng *tracker.Engine, token string) (tracker.Decision, bool) {
	if syncChoose == "local" {
		return tracker.DecisionKeepLocal, true
	}
	if syncChoose == "remote" {
		return tracker.DecisionKeepRemote, true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", false
	}

	conflict := findPending(eng, token)
	if conflict == nil {
		return "", false
	}
	fmt.Printf("%s Conflict on %s (%s): local=%s remote=%s\n",
		ui.RenderWarnIcon(), conflict.IncrementID, conflict.Tracker,
		ui.RenderStatus(conflict.Local), ui.RenderStatus(conflict.Remote))
	fmt.Print("Keep [l]ocal or adopt [r]emote? ")

	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "l", "local":
		return tracker.DecisionKeepLocal, true
	case "r", "remote":
		return tracker.DecisionKeepRemote, true
	}
	fmt.Println(ui.RenderMuted("Left unresolved; re-run with --choose local|remote to settle it"))
	return "", false
}

func findPending(eng *tracker.Engine, token string) *tracker.Conflict {
	for _, pending := range eng.Pending() {
		if pending.Token == token {
			return &pending.Conflict
		}
	}
	return nil
}

func printPassResult(result *tracker.PassResult) {
	switch {
	case result.Err != nil:
		fmt.Printf("%s %s: %v\n", ui.RenderFailIcon(), result.IncrementID, result.Err)
	case result.PendingToken != "":
		fmt.Printf("%s %s: conflict parked; re-run with --choose local|remote to settle it\n",
			ui.RenderWarnIcon(), result.IncrementID)
	case result.Outcome == synclog.OutcomeNoop:
		fmt.Printf("%s %s: in sync\n", ui.RenderPassIcon(), result.IncrementID)
	default:
		fmt.Printf("%s %s: %s (now %s)\n",
			ui.RenderPassIcon(), result.IncrementID, result.Outcome, ui.RenderStatus(result.Resolved))
	}
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every increment with a tracker link")
	syncCmd.Flags().StringVar(&syncStrategy, "strategy", "", "Conflict strategy override (local-wins, remote-wins, prompt-user)")
	syncCmd.Flags().StringVar(&syncChoose, "choose", "", "Answer prompt-user conflicts non-interactively (local|remote)")
	syncCmd.Flags().IntVar(&syncParallel, "parallel", 4, "Concurrent passes with --all")
	rootCmd.AddCommand(syncCmd)
}
