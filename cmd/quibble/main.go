package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{Use: "quibble", Short: "Agentic shopping broker"}

	root.AddCommand(serveCMD(), registryCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
