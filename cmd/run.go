// cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/forge3d/blenderbridge/internal/client"
	"github.com/spf13/cobra"
)

var (
	runTimeout int

	runningColor  = color.New(color.FgCyan)
	progressColor = color.New(color.FgYellow)
	okColor       = color.New(color.FgGreen, color.Bold)
	errColor      = color.New(color.FgRed, color.Bold)
)

var runCmd = &cobra.Command{
	Use:   "run <script-file>",
	Short: "Submits a script to the bridge and streams its progress",
	Long: `Reads a script from a file (or stdin when the argument is "-"), submits
it to the bridge, and prints progress frames as they arrive. The command
exits 0 when the script succeeds, 1 when it fails inside the host, and 2
when the bridge itself is unreachable or times out.`,
	Example: `  # Run a script file
  blenderbridge run build_scene.star

  # Pipe a script from stdin
  echo 'send_status("hi")' | blenderbridge run -

  # Run against a bridge on another port
  blenderbridge run --addr 127.0.0.1:9000 build_scene.star`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code, err := readScript(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(2)
		}

		cfg := client.DefaultConfig()
		cfg.Addr = bridgeAddr
		if runTimeout > 0 {
			cfg.Timeout = time.Duration(runTimeout) * time.Second
		}
		c := client.New(cfg)

		res, err := c.Do(context.Background(), code, printEvent)
		if err != nil {
			switch {
			case errors.Is(err, client.ErrUnreachable):
				fmt.Fprintf(os.Stderr, "❌ Bridge unreachable at %s. Is 'blenderbridge serve' running?\n", cfg.Addr)
			case errors.Is(err, client.ErrTimeout):
				fmt.Fprintf(os.Stderr, "❌ No response within %v\n", cfg.Timeout)
			default:
				fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			}
			os.Exit(2)
		}

		if res.Failed() {
			if res.Trace != "" {
				fmt.Fprintln(os.Stderr, res.Trace)
			}
			os.Exit(1)
		}
	},
}

// readScript loads the payload from a file path, or stdin for "-".
func readScript(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("could not read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read script %s: %w", path, err)
	}
	return string(data), nil
}

// printEvent renders one bridge frame as it arrives.
func printEvent(status, message string) {
	switch status {
	case "running":
		runningColor.Printf("[RUNNING]  %s\n", message)
	case "progress":
		progressColor.Printf("[PROGRESS] %s\n", message)
	case "ok":
		okColor.Printf("[SUCCESS]  %s\n", message)
	case "error":
		errColor.Printf("[ERROR]    %s\n", message)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "Seconds to wait for the script to finish (default: 120)")
}
