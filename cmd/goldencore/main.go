// Command goldencore is a harness CLI over the engine and persist
// packages: it exercises them end to end without standing in for the
// UI/network collaborators an embedding application provides. A root
// cobra.Command with subcommands that each wrap a handful of library
// calls and report plain-text results, owning no business logic of
// their own.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
