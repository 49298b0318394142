package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxcd/rgcomposer/pkg/api"
)

type applyOpts struct {
	*rootOpts
	file string
}

func newApply(parent *rootOpts) *applyOpts {
	return &applyOpts{rootOpts: parent}
}

func (opts *applyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Validate a resource group manifest and apply it to the cluster",
		Long: strings.TrimSpace(`
Validate a resource group manifest and apply it to the cluster the API
server is connected to. A manifest that fails validation is not applied.
`),
		Example: makeExample(
			"composerctl apply -f rg.yaml",
			"composerctl assemble -f group.yaml | composerctl apply -f -",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "manifest to apply; - for stdin")
	return cmd
}

func (opts *applyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	text, err := readInput(cmd, opts.file)
	if err != nil {
		return err
	}

	res, err := opts.API.Apply(context.Background(), api.ApplyRequest{Manifest: string(text)})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), res.Output)
	if !strings.HasSuffix(res.Output, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
