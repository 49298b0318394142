package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

type previewOpts struct {
	*rootOpts
	file    string
	output  string
	verbose bool
}

func newPreview(parent *rootOpts) *previewOpts {
	return &previewOpts{rootOpts: parent}
}

var previewLongHelp = strings.TrimSpace(`
Compose a resource group an edit at a time, as the form frontend does.

The file lists edits, each one of:
  {op: cr, cr: {name, namespace}}
  {op: group, group: {name, namespace, labels, annotations}}
  {op: add, resource: {apiVersion, kind, nameOverride, ...}}
  {op: remove, index: N}
  {op: reset}

The API server checks each edit, and the manifest is printed at the end.
An edit that is refused leaves the group as it was.
`)

func (opts *previewOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compose a resource group an edit at a time",
		Long:  previewLongHelp,
		Example: makeExample(
			"composerctl preview -f edits.yaml",
			"composerctl preview -f edits.yaml --verbose -o rg.yaml",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML or JSON file with a list of edits; - for stdin")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the manifest to this file rather than stdout")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "report the resources and steps after each edit")
	return cmd
}

func (opts *previewOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	data, err := readInput(cmd, opts.file)
	if err != nil {
		return err
	}
	var ops []api.PreviewOp
	if err := yaml.Unmarshal(data, &ops); err != nil {
		return fmt.Errorf("reading %s: %s", opts.file, err)
	}

	ws, err := opts.API.Preview(context.Background())
	if err != nil {
		return err
	}
	defer ws.Close()

	var state api.PreviewState
	if err := ws.ReadJSON(&state); err != nil {
		return err
	}

	var refused int
	for i, op := range ops {
		if err := ws.WriteJSON(op); err != nil {
			return err
		}
		state = api.PreviewState{}
		if err := ws.ReadJSON(&state); err != nil {
			return err
		}
		if state.Error != "" {
			refused++
			fmt.Fprintf(cmd.ErrOrStderr(), "edit %d (%s): %s\n", i, op.Op, state.Error)
		}
		if opts.verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "edit %d (%s): resources [%s] steps %v\n", i, op.Op, strings.Join(state.Names, ", "), state.Steps)
		}
	}

	if opts.output == "" {
		fmt.Fprint(cmd.OutOrStdout(), state.Manifest)
	} else if err := ioutil.WriteFile(opts.output, []byte(state.Manifest), 0644); err != nil {
		return err
	}
	if refused > 0 {
		return fmt.Errorf("%d of %d edits refused", refused, len(ops))
	}
	return reportValidation(cmd, schema.Result{Valid: state.Valid, Errors: state.Errors})
}
