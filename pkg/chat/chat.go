// Package chat relays a conversation to a hosted chat-completion model
// and returns its reply.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/metrics"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	Temperature    = 0.7
)

// ErrMissingFields is returned by Ask when any of its inputs is empty.
var ErrMissingFields = fluxerr.UserError("Missing API key, model, or messages")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var roles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
}

// Model is an entry of the model pick-list.
type Model struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Models lists the models offered to users. Any model id can be sent
// to Ask; these are suggestions.
func Models() []Model {
	return []Model{
		{Label: "GPT-4", Value: "gpt-4"},
		{Label: "GPT-4o", Value: "gpt-4o"},
		{Label: "GPT-3.5 Turbo", Value: "gpt-3.5-turbo"},
	}
}

type Config struct {
	BaseURL string
	// RPS and Burst limit calls to the upstream API, across all
	// callers. An RPS of 0 means no limit.
	RPS   float64
	Burst int
}

// Relay forwards conversations upstream. It keeps no conversation
// state; every call carries the whole transcript.
type Relay struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  log.Logger
}

func NewRelay(cfg Config, client *http.Client, logger log.Logger) *Relay {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return &Relay{
		baseURL: baseURL,
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Ask sends the conversation to model, authenticating with apiKey,
// and returns the content of the first choice in the reply. Failures
// upstream come back as a single upstream error; nothing is retried.
func (r *Relay) Ask(ctx context.Context, apiKey, model string, messages []Message) (answer string, err error) {
	if apiKey == "" || model == "" || len(messages) == 0 {
		return "", ErrMissingFields
	}
	for i, m := range messages {
		if !roles[m.Role] {
			return "", fluxerr.UserError(fmt.Sprintf("message %d has role %q; expected system, user or assistant", i, m.Role))
		}
	}

	defer func(begin time.Time) {
		askDuration.With(
			metrics.LabelModel, model,
			metrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
		r.logger.Log("model", model, "messages", len(messages), "took", time.Since(begin), "err", err)
	}(time.Now())

	if err := r.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "waiting to call chat API")
	}

	body, err := json.Marshal(completionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: Temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding chat request")
	}
	req, err := http.NewRequest("POST", r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "constructing chat request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", upstreamError(err.Error())
	}
	defer resp.Body.Close()
	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", upstreamError(errors.Wrap(err, "reading chat response").Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != nil && e.Error.Message != "" {
			return "", upstreamError(e.Error.Message)
		}
		return "", upstreamError(fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(respBody))))
	}

	var completion completionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", upstreamError(errors.Wrap(err, "decoding chat response").Error())
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func upstreamError(msg string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Upstream,
		Help: msg,
		Err:  errors.New(msg),
	}
}
