package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version string

func getVersion() string {
	if version == "" {
		return "unversioned"
	}
	return version
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Output the version of composerctl",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return errorWantedNoArgs
			}
			fmt.Fprintln(cmd.OutOrStdout(), getVersion())
			return nil
		},
	}
}
