package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/chat"
)

const EnvVariableAPIKey = "COMPOSER_CHAT_API_KEY"

type askOpts struct {
	*rootOpts
	apiKey  string
	model   string
	system  string
	history string
}

func newAsk(parent *rootOpts) *askOpts {
	return &askOpts{rootOpts: parent}
}

func (opts *askOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a question",
		Example: makeExample(
			`composerctl ask "How do I expose a deployment on port 80?"`,
			`composerctl ask --model gpt-4 --history chat.yaml "And with TLS?"`,
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", fmt.Sprintf("API key for the chat API; you can also set the environment variable %s", EnvVariableAPIKey))
	cmd.Flags().StringVar(&opts.model, "model", "gpt-4o", "chat model to ask; composerctl models lists some")
	cmd.Flags().StringVar(&opts.system, "system", "", "system message to start the conversation with")
	cmd.Flags().StringVar(&opts.history, "history", "", "YAML or JSON file with the conversation so far, as a list of role and content")
	return cmd
}

func (opts *askOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return newUsageError("please supply a question")
	}
	apiKey := getFromEnvIfNotSet(cmd.Flags(), "api-key", EnvVariableAPIKey, opts.apiKey)

	var messages []chat.Message
	if opts.system != "" {
		messages = append(messages, chat.Message{Role: "system", Content: opts.system})
	}
	if opts.history != "" {
		data, err := readInput(cmd, opts.history)
		if err != nil {
			return err
		}
		var history []chat.Message
		if err := yaml.Unmarshal(data, &history); err != nil {
			return fmt.Errorf("reading %s: %s", opts.history, err)
		}
		messages = append(messages, history...)
	}
	messages = append(messages, chat.Message{Role: "user", Content: strings.Join(args, " ")})

	res, err := opts.API.Ask(context.Background(), api.AskRequest{
		APIKey:   apiKey,
		Model:    opts.model,
		Messages: messages,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
	return nil
}
