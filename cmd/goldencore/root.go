package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "goldencore",
	Short: "Harness CLI for the Golden Core engine and persistence layer",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(migrateCmd)
}
