// Command axengine is a demo harness around the accessibility engine:
// it wires the dispatcher to a fake or gopsutil-backed AXPort and
// drives it from NDJSON command envelopes on stdin, one Response per
// line on stdout. It is not part of the engine itself — embedders
// wire internal/dispatcher directly — this binary only exists to
// exercise the whole stack end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "axengine",
	Short:   "axengine - embeddable accessibility tree engine demo host",
	Long:    `axengine drives the accessibility dispatcher from NDJSON command envelopes on stdin for local testing and demos.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		bridgeAddr, _ := cmd.Flags().GetString("bridge-addr")
		demoTree, _ := cmd.Flags().GetBool("demo-tree")
		return runServe(cmd.Context(), serveOptions{
			metricsAddr: metricsAddr,
			bridgeAddr:  bridgeAddr,
			demoTree:    demoTree,
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("axengine %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.Flags().String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	rootCmd.Flags().String("bridge-addr", "", "address to serve the debug notification/log WebSocket relay on (empty disables)")
	rootCmd.Flags().Bool("demo-tree", false, "seed a demo fake application alongside real enumerated processes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
