package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Specification decomposition and proposer routing engine",
	Long: `Dispatch turns a technical specification into a validated, dependency-ordered
list of work orders, routes each one to a code-generation proposer under a daily
budget, and drives every generated artifact through compiler-guided refinement.

Core capabilities:
- Estimates specification size and decomposes it, in batches when large
- Validates and repairs work order dependencies
- Routes work orders by complexity, hard-stop keywords and daily spend
- Retries failed generations up a proposer ladder before escalating
- Refines artifacts against compiler diagnostics and API contracts`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is not an error.
		_ = godotenv.Load()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// verbose reports whether debug output was requested.
func verbose() bool {
	return os.Getenv("DISPATCH_DEBUG") != ""
}
