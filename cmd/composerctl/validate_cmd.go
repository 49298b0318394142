package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

var errInvalid = errors.New("manifest is not valid")

type validateOpts struct {
	*rootOpts
	file       string
	schemaPath string
}

func newValidate(parent *rootOpts) *validateOpts {
	return &validateOpts{rootOpts: parent}
}

func (opts *validateOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a resource group manifest against the schema",
		Example: makeExample(
			"composerctl validate -f rg.yaml",
			"composerctl validate -f rg.yaml --schema crd.yaml",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "manifest to validate; - for stdin")
	cmd.Flags().StringVar(&opts.schemaPath, "schema", "", "validate here, against the schema of this CustomResourceDefinition, rather than asking the API server")
	return cmd
}

func (opts *validateOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	text, err := readInput(cmd, opts.file)
	if err != nil {
		return err
	}

	var server api.Server = opts.API
	if opts.schemaPath != "" {
		if server, err = localServer(opts.schemaPath); err != nil {
			return err
		}
	}
	res, err := server.Validate(context.Background(), api.ValidateRequest{Manifest: string(text)})
	if err != nil {
		return err
	}
	if res.Valid {
		fmt.Fprintln(cmd.OutOrStdout(), "valid")
	}
	return reportValidation(cmd, res)
}

// reportValidation lists the errors of an invalid result, and makes
// the command fail.
func reportValidation(cmd *cobra.Command, res schema.Result) error {
	if res.Valid {
		return nil
	}
	out := newTabwriter(cmd.ErrOrStderr())
	fmt.Fprintln(out, "PATH\tERROR")
	for _, e := range res.Errors {
		fmt.Fprintf(out, "%s\t%s\n", e.Path, e.Message)
	}
	if err := out.Flush(); err != nil {
		return err
	}
	return errInvalid
}
