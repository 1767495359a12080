package main

import (
	"fmt"
	"strings"

	"github.com/goldencore/core/persist"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <project-file>",
	Short: "Print a project file's record tree without instantiating it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := persist.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("version: %s\n", file.Version)
		printRecord(file.Root, 0)
		return nil
	},
}

func printRecord(rec persist.Record, depth int) {
	indent := strings.Repeat("  ", depth)
	switch {
	case rec.Type != "":
		fmt.Printf("%s- %s  uuid=%s decl=%s\n", indent, rec.Type, rec.Uuid, rec.DeclId)
	default:
		fmt.Printf("%s- (delta) decl=%s\n", indent, rec.DeclId)
	}
	for _, c := range rec.Children {
		printRecord(c, depth+1)
	}
}
