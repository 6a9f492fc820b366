package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/loomworks/loom/internal/config"
	"github.com/loomworks/loom/internal/debug"
	"github.com/loomworks/loom/internal/guard"
	"github.com/loomworks/loom/internal/synclog"
	"github.com/loomworks/loom/internal/telemetry"
	"github.com/loomworks/loom/internal/tracker"
)

// workspace bundles the per-project state every command needs: resolved
// config, the consistency guard over .loom/increments, and the sync log.
type workspace struct {
	cfg   *config.Config
	guard *guard.Guard
	log   *synclog.Log
}

// openWorkspace discovers the project root from the working directory and
// wires up the guard and sync log.
func openWorkspace() (*workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := config.FindRoot(cwd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return &workspace{
		cfg:   cfg,
		guard: guard.New(filepath.Join(cfg.Dir(), "increments")),
		log:   synclog.New(filepath.Join(cfg.Dir(), "sync-log.jsonl")),
	}, nil
}

// engine builds a sync engine over every configured tracker connection.
// strategyOverride, when non-empty, replaces the configured strategy.
func (ws *workspace) engine(strategyOverride string) (*tracker.Engine, error) {
	strategy := ws.cfg.Strategy
	if strategyOverride != "" {
		parsed, err := tracker.ParseStrategy(strategyOverride)
		if err != nil {
			return nil, err
		}
		strategy = parsed
	}

	adapters := make(map[string]tracker.Adapter, len(ws.cfg.Trackers))
	for name := range ws.cfg.Trackers {
		adapter, err := ws.cfg.TrackerFor(name)
		if err != nil {
			return nil, fmt.Errorf("tracker %q: %w", name, err)
		}
		adapters[name] = telemetry.WrapAdapter(adapter)
	}

	eng := tracker.NewEngine(ws.guard, ws.log, strategy, adapters)
	eng.Staleness = ws.cfg.Staleness
	eng.Actor = getActor()
	eng.OnMessage = func(msg string) { debug.PrintNormal("%s\n", msg) }
	eng.OnWarning = func(msg string) { fmt.Fprintf(os.Stderr, "Warning: %s\n", msg) }
	return eng, nil
}

// getActor returns the audit-trail actor.
// Priority: --actor flag > LOOM_ACTOR env > git config user.name > $USER > "unknown".
func getActor() string {
	if actor != "" {
		return actor
	}
	if envActor := os.Getenv("LOOM_ACTOR"); envActor != "" {
		return envActor
	}
	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if gitUser := strings.TrimSpace(string(out)); gitUser != "" {
			return gitUser
		}
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// outputJSON marshals v to indented JSON on stdout.
func outputJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// fatal prints the error and exits non-zero.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
