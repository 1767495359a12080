package main

import (
	"fmt"

	"github.com/goldencore/core/persist"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <in-file> <out-file>",
	Short: "Load a project (migrating it if its version is out of date) and rewrite it at the current version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := persist.LoadFile(args[0])
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		if err := persist.SaveFile(args[1], file); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		fmt.Printf("migrated %s -> %s (version %s)\n", args[0], args[1], file.Version)
		return nil
	},
}
