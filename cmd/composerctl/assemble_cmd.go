package main

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/ghodss/yaml"
	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/cluster/kubectl"
	"github.com/fluxcd/rgcomposer/pkg/compose"
	"github.com/fluxcd/rgcomposer/pkg/daemon"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

type assembleOpts struct {
	*rootOpts
	file       string
	output     string
	local      bool
	schemaPath string

	contextNamespace bool
	kubeconfig       string
	kubeContext      string
}

func newAssemble(parent *rootOpts) *assembleOpts {
	return &assembleOpts{rootOpts: parent}
}

func (opts *assembleOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Compose a resource group manifest from a description of the group",
		Example: makeExample(
			"composerctl assemble -f group.yaml",
			"composerctl assemble -f group.yaml --schema crd.yaml -o rg.yaml",
			"cat group.json | composerctl assemble -f - --local",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML or JSON file with the cr, group and resources of the manifest; - for stdin")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the manifest to this file rather than stdout")
	cmd.Flags().BoolVar(&opts.local, "local", false, "assemble here rather than asking the API server")
	cmd.Flags().StringVar(&opts.schemaPath, "schema", "", "validate against the schema of this CustomResourceDefinition; implies --local")
	cmd.Flags().BoolVar(&opts.contextNamespace, "context-namespace", false, "if the custom resource has no namespace, use that of the kubeconfig context")
	cmd.Flags().StringVar(&opts.kubeconfig, "kubeconfig", "", "kubeconfig to read the namespace from, with --context-namespace")
	cmd.Flags().StringVar(&opts.kubeContext, "context", "", "kubeconfig context to read the namespace from, with --context-namespace")
	return cmd
}

func (opts *assembleOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	data, err := readInput(cmd, opts.file)
	if err != nil {
		return err
	}
	var req api.AssembleRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("reading %s: %s", opts.file, err)
	}
	if req.CR.Namespace == "" && opts.contextNamespace {
		req.CR.Namespace = kubectl.NamespaceOrDefault(kubectl.Options{
			Kubeconfig: opts.kubeconfig,
			Context:    opts.kubeContext,
		}, "")
	}

	server, err := opts.server()
	if err != nil {
		return err
	}
	res, err := server.Assemble(context.Background(), req)
	if err != nil {
		return err
	}

	if opts.output == "" {
		fmt.Fprint(cmd.OutOrStdout(), res.Manifest)
	} else if err := ioutil.WriteFile(opts.output, []byte(res.Manifest), 0644); err != nil {
		return err
	}
	return reportValidation(cmd, schema.Result{Valid: res.Valid, Errors: res.Errors})
}

// server is the API server, or a composer running in-process when
// assembling locally.
func (opts *assembleOpts) server() (api.Server, error) {
	if !opts.local && opts.schemaPath == "" {
		return opts.API, nil
	}
	return localServer(opts.schemaPath)
}

// localServer composes and validates in-process. It can't apply or
// relay chat.
func localServer(schemaPath string) (api.Server, error) {
	validator := schema.Disabled()
	if schemaPath != "" {
		var err error
		if validator, err = schema.Load(schemaPath); err != nil {
			return nil, err
		}
	}
	return &daemon.Daemon{
		V:         getVersion(),
		Validator: validator,
		Builder:   compose.NewBuilder(nil),
		Logger:    log.NewNopLogger(),
	}, nil
}
