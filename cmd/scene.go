// cmd/scene.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/forge3d/blenderbridge/internal/agent"
	"github.com/forge3d/blenderbridge/internal/bridge"
	"github.com/forge3d/blenderbridge/internal/client"
	"github.com/spf13/cobra"
)

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Prints an inventory of the current scene",
	Long: `Asks the bridge for an inventory of the objects in the current scene.
This runs a canned inspection script on the host thread, so it queues
behind any script already executing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := client.DefaultConfig()
		cfg.Addr = bridgeAddr
		c := client.New(cfg)

		var lines []string
		res, err := c.Do(context.Background(), agent.SceneScript, func(status, message string) {
			if status == bridge.StatusProgress {
				lines = append(lines, message)
			}
		})
		if err != nil {
			if errors.Is(err, client.ErrUnreachable) {
				fmt.Fprintf(os.Stderr, "❌ Bridge unreachable at %s. Is 'blenderbridge serve' running?\n", cfg.Addr)
			} else {
				fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			}
			os.Exit(2)
		}

		if res.Failed() {
			errColor.Fprintf(os.Stderr, "Inspection failed: %s\n", res.Error)
			os.Exit(1)
		}

		for _, line := range lines {
			fmt.Println(line)
		}
	},
}

func init() {
	rootCmd.AddCommand(sceneCmd)
}
