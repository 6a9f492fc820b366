package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/config"
	"github.com/loomworks/loom/internal/ui"
)

const configTemplate = `# loom project configuration
#
# strategy: how sync conflicts are resolved
#   local-wins   push the local status to the tracker
#   remote-wins  adopt the tracker's status locally
#   prompt-user  suspend and ask (default)
#strategy: prompt-user

# wip:
#   limit: 3

# staleness:
#   paused-after-days: 14
#   active-after-days: 30
#   experiment-abandon-after-days: 7

# trackers:
#   upstream:
#     kind: github
#     owner: your-org
#     repo: your-repo
#     token-env: GITHUB_TOKEN
`

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a loom project in the current directory",
	GroupID: "setup",
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal(err)
		}

		dir := filepath.Join(cwd, config.DirName)
		if _, err := os.Stat(dir); err == nil {
			fatal(fmt.Errorf("%s already exists", dir))
		}

		if err := os.MkdirAll(filepath.Join(dir, "increments"), 0o755); err != nil {
			fatal(err)
		}
		configPath := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(configPath, []byte(configTemplate), 0o644); err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"root": cwd, "config": configPath})
			return
		}
		fmt.Printf("%s Initialized loom project in %s\n", ui.RenderPassIcon(), dir)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
