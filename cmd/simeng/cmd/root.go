// Package cmd provides the simeng command-line interface, grounded on
// sarchlab-akita/akita/cmd's cobra root-command shape.
package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "simeng",
	Short: "simeng drives an out-of-order core simulation from a YAML config",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
}
