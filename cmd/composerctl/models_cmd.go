package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type modelsOpts struct {
	*rootOpts
}

func newModels(parent *rootOpts) *modelsOpts {
	return &modelsOpts{rootOpts: parent}
}

func (opts *modelsOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the chat models the assistant can use",
		RunE:  opts.RunE,
	}
	return cmd
}

func (opts *modelsOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	models, err := opts.API.Models(context.Background())
	if err != nil {
		return err
	}

	out := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintln(out, "MODEL\tDESCRIPTION")
	for _, m := range models {
		fmt.Fprintf(out, "%s\t%s\n", m.Value, m.Label)
	}
	return out.Flush()
}
