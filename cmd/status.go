// cmd/status.go
package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statusMonitorURL string

	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.Bold)
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Shows the health and counters of a running bridge",
	Long: `Queries the HTTP monitor of a running bridge and prints its health and
job counters. The monitor listens on its own port next to the bridge
socket (8082 by default).`,
	Example: `  # Query the default local monitor
  blenderbridge status

  # Query a monitor on a custom port
  blenderbridge status --monitor-url http://127.0.0.1:9082`,
	Run: func(cmd *cobra.Command, args []string) {
		httpClient := &http.Client{Timeout: 5 * time.Second}

		health, err := fetchJSON(httpClient, statusMonitorURL+"/health")
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Monitor unreachable at %s: %v\n", statusMonitorURL, err)
			os.Exit(2)
		}
		stats, err := fetchJSON(httpClient, statusMonitorURL+"/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Could not read stats: %v\n", err)
			os.Exit(2)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		headerColor.Fprintln(w, "--- 📊 Bridge Status ---")
		printFields(w, health)

		headerColor.Fprintln(w, "\n📈 COUNTERS")
		printFields(w, stats)
	},
}

// fetchJSON GETs a monitor endpoint and decodes the body.
func fetchJSON(c *http.Client, url string) (map[string]any, error) {
	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// printFields renders a decoded JSON object as sorted label/value rows.
func printFields(w *tabwriter.Writer, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := fields[k].(type) {
		case map[string]any:
			fmt.Fprintf(w, "  %s:\n", labelColor.Sprint(k))
			inner := make([]string, 0, len(v))
			for ik := range v {
				inner = append(inner, ik)
			}
			sort.Strings(inner)
			for _, ik := range inner {
				fmt.Fprintf(w, "    %s:\t%v\n", ik, v[ik])
			}
		default:
			fmt.Fprintf(w, "  %s:\t%v\n", labelColor.Sprint(k), v)
		}
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusMonitorURL, "monitor-url", getEnvOrDefault("BRIDGE_MONITOR_URL", "http://127.0.0.1:8082"), "Base URL of the bridge monitor")
}
