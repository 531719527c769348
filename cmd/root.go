// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var cfgFile string
var bridgeAddr string
var debugMode bool
var noColor bool

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blenderbridge",
	Short: "Blenderbridge drives a running Blender instance over a local socket",
	Long: `A local bridge and CLI for remote-controlling Blender. The serve command
hosts the bridge next to Blender; run, scene and status talk to it; mcp
exposes it to AI assistants over the Model Context Protocol.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
			color.NoColor = true
		}
		if debugMode {
			fullCmd := "blenderbridge " + cmd.Name()
			cmd.Flags().Visit(func(f *pflag.Flag) {
				fullCmd += " --" + f.Name + "=" + f.Value.String()
			})
			fmt.Fprintf(os.Stderr, "[DEBUG] command: %s\n", fullCmd)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.blenderbridge.yaml)")
	rootCmd.PersistentFlags().StringVar(&bridgeAddr, "addr", getEnvOrDefault("BRIDGE_ADDR", "127.0.0.1:8081"), "Bridge address for client commands")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}
