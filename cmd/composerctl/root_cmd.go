package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	transport "github.com/fluxcd/rgcomposer/pkg/http"
	"github.com/fluxcd/rgcomposer/pkg/http/client"
)

const (
	EnvVariableURL     = "COMPOSER_URL"
	EnvVariableTimeout = "COMPOSER_TIMEOUT"

	defaultURL = "http://localhost:3030"
)

type rootOpts struct {
	URL     string
	Timeout time.Duration
	API     *client.Client
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
composerctl composes resource groups and puts them in your cluster.

Workflow:
  composerctl assemble -f group.yaml -o rg.yaml   # Compose a manifest from a description of the group.
  composerctl validate -f rg.yaml                 # Check it against the resource group schema.
  composerctl apply -f rg.yaml                    # Apply it to the cluster.
  composerctl preview -f edits.yaml               # Compose a group an edit at a time.
  composerctl ask "Why is my deployment pending?" # Ask the assistant.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "composerctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", defaultURL,
		fmt.Sprintf("base URL of the composer API server; you can also set the environment variable %s", EnvVariableURL))
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute,
		fmt.Sprintf("give up on an API call after this long; you can also set the environment variable %s", EnvVariableTimeout))

	cmd.AddCommand(
		newVersionCommand(),
		newModels(opts).Command(),
		newAssemble(opts).Command(),
		newValidate(opts).Command(),
		newApply(opts).Command(),
		newAsk(opts).Command(),
		newPreview(opts).Command(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	// skip the client for commands that don't need it
	switch cmd.Use {
	case "version":
		return nil
	}

	opts.URL = getFromEnvIfNotSet(cmd.Flags(), "url", EnvVariableURL, opts.URL)
	if env := os.Getenv(EnvVariableTimeout); env != "" && !cmd.Flags().Changed("timeout") {
		timeout, err := time.ParseDuration(env)
		if err != nil {
			return newUsageError(fmt.Sprintf("%s: %s", EnvVariableTimeout, err))
		}
		opts.Timeout = timeout
	}

	opts.API = client.New(&http.Client{Timeout: opts.Timeout}, transport.NewAPIRouter(), opts.URL, "composerctl/"+getVersion())
	return nil
}

type flagSet interface {
	Changed(name string) bool
}

func getFromEnvIfNotSet(flags flagSet, flagName, envName, value string) string {
	if flags.Changed(flagName) {
		return value
	}
	if env := os.Getenv(envName); env != "" {
		return env
	}
	return value // not changed, so presumably the default
}

// readInput reads the file at path, or stdin if path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return nil, newUsageError("please supply a file with -f, or - to read from stdin")
	}
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return ioutil.ReadAll(r)
}
