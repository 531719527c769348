// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/forge3d/blenderbridge/internal/bridge"
	"github.com/forge3d/blenderbridge/internal/engine"
	"github.com/forge3d/blenderbridge/internal/host"
	"github.com/forge3d/blenderbridge/internal/monitor"
	"github.com/forge3d/blenderbridge/internal/schedule"
	"github.com/spf13/cobra"
)

var (
	servePort        int
	serveHost        string
	serveMaxConns    int
	serveExecTimeout int
	serveIdleTimeout int
	serveMaxPayload  int
	serveQueueDepth  int
	serveMonitor     bool
	serveMonitorPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the bridge server that executes scripts on the host",
	Long: `Starts the TCP bridge server. Clients submit scripts as length-framed
JSON requests; the bridge queues them for the single host thread, streams
progress frames back as they run, and finishes each request with exactly
one terminal response.

The bridge only binds loopback addresses. An optional HTTP monitor on a
second port exposes health, counters and a WebSocket feed of job events.`,
	Example: `  # Start on the default port
  blenderbridge serve

  # Start on a custom port with a shorter execution timeout
  blenderbridge serve --port 9000 --exec-timeout 30

  # Start without the HTTP monitor
  blenderbridge serve --monitor=false`,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadServeConfig(cmd)
		if err != nil {
			return err
		}
		return config.Validate()
	},

	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("--- Starting Blender Bridge ---")

		config, err := loadServeConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
			os.Exit(1)
		}

		// The tick loop stands in for the host application's main thread.
		loop := host.NewTickLoop()
		if err := loop.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to start host loop: %v\n", err)
			os.Exit(1)
		}

		eng := engine.NewStarlark(nil)
		exec := schedule.ExecutorFunc(func(code string, report func(msg string)) schedule.Outcome {
			if execErr := engine.Run(eng, code, report); execErr != nil {
				return schedule.Outcome{Message: execErr.Message, Trace: execErr.Trace}
			}
			return schedule.Outcome{OK: true}
		})

		sched := schedule.New(loop, exec, schedule.Config{MaxQueueDepth: config.MaxQueueDepth})
		server := bridge.NewServer(config, sched)

		var mon *monitor.Server
		if config.MonitorEnabled {
			hub := monitor.NewHub()
			server.SetEventSink(hub)
			mon = monitor.NewServer(monitor.Config{
				Addr:    net.JoinHostPort(config.Host, strconv.Itoa(config.MonitorPort)),
				Version: Version,
			}, hub, func() any { return server.Stats() })
			if err := mon.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "❌ Failed to start monitor: %v\n", err)
				os.Exit(1)
			}
		}

		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to start server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("   - Address: %s\n", config.Addr())
		fmt.Printf("   - Execution timeout: %v\n", config.ExecTimeout)
		fmt.Printf("   - Idle timeout: %v\n", config.IdleTimeout)
		fmt.Printf("   - Max connections: %d\n", config.MaxConnections)
		fmt.Printf("   - Queue depth: %d\n", config.MaxQueueDepth)
		if mon != nil {
			fmt.Printf("   - Monitor: http://%s\n", mon.Addr())
		}
		fmt.Println("   - ✅ Bridge is running")
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop the server")

		// Wait for shutdown signal
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		fmt.Println("\n--- Shutting down bridge ---")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Stop resolves queued jobs so in-flight clients still get their
		// terminal frame; Close afterwards is a no-op safety net.
		if err := server.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "   - Warning: shutdown error: %v\n", err)
		}
		sched.Close()
		if err := loop.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "   - Warning: host loop shutdown error: %v\n", err)
		}
		if mon != nil {
			if err := mon.Stop(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "   - Warning: monitor shutdown error: %v\n", err)
			}
		}

		fmt.Println("   - ✅ Bridge stopped")
	},
}

// loadServeConfig layers flags over the config file over environment
// defaults.
func loadServeConfig(cmd *cobra.Command) (*bridge.Config, error) {
	config := bridge.DefaultConfig()
	if cfgFile != "" {
		var err error
		config, err = bridge.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("port") {
		config.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		config.Host = serveHost
	}
	if cmd.Flags().Changed("max-connections") {
		config.MaxConnections = serveMaxConns
	}
	if cmd.Flags().Changed("exec-timeout") {
		config.ExecTimeout = time.Duration(serveExecTimeout) * time.Second
	}
	if cmd.Flags().Changed("idle-timeout") {
		config.IdleTimeout = time.Duration(serveIdleTimeout) * time.Second
	}
	if cmd.Flags().Changed("max-payload-bytes") {
		config.MaxPayloadBytes = serveMaxPayload
	}
	if cmd.Flags().Changed("queue-depth") {
		config.MaxQueueDepth = serveQueueDepth
	}
	if cmd.Flags().Changed("monitor") {
		config.MonitorEnabled = serveMonitor
	}
	if cmd.Flags().Changed("monitor-port") {
		config.MonitorPort = serveMonitorPort
	}
	if debugMode {
		config.Debug = true
	}

	return config, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: 8081)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Loopback address to bind (default: 127.0.0.1)")
	serveCmd.Flags().IntVar(&serveMaxConns, "max-connections", 0, "Maximum concurrent client connections (default: 16)")
	serveCmd.Flags().IntVar(&serveExecTimeout, "exec-timeout", 0, "Seconds a client waits for a script before timing out (default: 120)")
	serveCmd.Flags().IntVar(&serveIdleTimeout, "idle-timeout", 0, "Seconds a connection may idle between requests (default: 300)")
	serveCmd.Flags().IntVar(&serveMaxPayload, "max-payload-bytes", 0, "Largest accepted request payload in bytes (default: 1048576)")
	serveCmd.Flags().IntVar(&serveQueueDepth, "queue-depth", 0, "Maximum queued jobs waiting for the host thread (default: 64)")
	serveCmd.Flags().BoolVar(&serveMonitor, "monitor", true, "Enable the HTTP monitor endpoint")
	serveCmd.Flags().IntVar(&serveMonitorPort, "monitor-port", 0, "Port for the HTTP monitor (default: 8082)")
}
