package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fuelsim",
	Short: "Discrete-time fuel-cycle agent simulation",
	Long: `fuelsim drives a discrete-time, agent-based fuel-cycle simulation: facilities
trade material and product resources through a per-timestep dynamic
resource exchange, built from a JSON configuration naming recipes,
prototypes, and an initial build schedule.`,
}

func main() {
	rootCmd.AddCommand(runCmd(), queryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
