package cmd

import (
	"github.com/spf13/cobra"
)

const AppName = "blockid"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - block device and filesystem identification",
	}

	rootCmd.AddCommand(DefineProbeCommand())
	rootCmd.AddCommand(DefineListCommand())
	rootCmd.AddCommand(DefineCacheFileCommand())

	return rootCmd.Execute()
}
