package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/signals"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop a running dispatch run in this project",
	Long: `Write the kill file watched by a running 'dispatch run' in the current
project. The run stops once in-flight generation calls return and records
unfinished work orders as cancelled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		if err := signals.SendKill(projectStateDir(root)); err != nil {
			return fmt.Errorf("send kill signal: %w", err)
		}
		printStatus("✓", "Kill signal sent", colorOK)
		return nil
	},
}
