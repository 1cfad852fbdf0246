// cmd/recalc/main.go
// Rescores races straight against the database, without going through the
// HTTP API.
//
// Usage:
//
//	go run ./cmd/recalc race 42
//	go run ./cmd/recalc pool 3 --json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var asJSON bool

var rootCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recompute race scores",
	Long: `Recompute the scores of one race or of every published race in a pool
from the stored official results, predictions and rulesets.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print the outcome as JSON")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "recalc failed: %s\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
