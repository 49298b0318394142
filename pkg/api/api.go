package api

import (
	"context"

	"github.com/fluxcd/rgcomposer/pkg/chat"
	"github.com/fluxcd/rgcomposer/pkg/compose"
	"github.com/fluxcd/rgcomposer/pkg/resource"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

// Server defines the interface a composer must satisfy to serve a
// connecting composerctl or form frontend.
type Server interface {
	Ping(context.Context) error
	Version(context.Context) (string, error)
	Models(context.Context) ([]chat.Model, error)

	Assemble(context.Context, AssembleRequest) (AssembleResponse, error)
	Validate(context.Context, ValidateRequest) (schema.Result, error)
	Apply(context.Context, ApplyRequest) (ApplyResponse, error)
	Ask(context.Context, AskRequest) (AskResponse, error)
}

type AssembleRequest struct {
	CR        resource.CRMetadata    `json:"cr"`
	Group     resource.GroupMetadata `json:"group"`
	Resources []resource.Spec        `json:"resources"`
}

// AssembleResponse carries the manifest as YAML text, and the result
// of validating it.
type AssembleResponse struct {
	Manifest string         `json:"manifest"`
	Valid    bool           `json:"valid"`
	Errors   []schema.Error `json:"errors"`
}

type ValidateRequest struct {
	Manifest string `json:"manifest"`
}

type ApplyRequest struct {
	Manifest string `json:"manifest"`
}

// ApplyResponse is the body of an apply, whether it worked or not.
type ApplyResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

type AskRequest struct {
	APIKey   string         `json:"apiKey"`
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
}

type AskResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Previewer is implemented by servers that can host an interactive
// preview, where a session is edited an op at a time.
type Previewer interface {
	Preview(context.Context, *compose.Session, PreviewOp) PreviewState
}

const (
	OpCR      = "cr"
	OpGroup   = "group"
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReset   = "reset"
	OpRefresh = "refresh"
)

// PreviewOp is one edit of a preview session. Which of the other
// fields is needed depends on Op.
type PreviewOp struct {
	Op       string               `json:"op"`
	CR       *resource.CRMetadata `json:"cr,omitempty"`
	Group    *compose.Group       `json:"group,omitempty"`
	Resource *compose.Form        `json:"resource,omitempty"`
	Index    *int                 `json:"index,omitempty"`
}

// PreviewState is sent after every op. Steps[i] says whether step i of
// composing may be left.
type PreviewState struct {
	Manifest string         `json:"manifest"`
	Valid    bool           `json:"valid"`
	Errors   []schema.Error `json:"errors"`
	Names    []string       `json:"names"`
	Steps    []bool         `json:"steps"`
	Error    string         `json:"error,omitempty"`
}
