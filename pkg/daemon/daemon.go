package daemon

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-kit/kit/log"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/chat"
	"github.com/fluxcd/rgcomposer/pkg/cluster/kubectl"
	"github.com/fluxcd/rgcomposer/pkg/compose"
	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/manifest"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

// Cluster is where manifests get applied.
type Cluster interface {
	Apply(ctx context.Context, manifest []byte) (string, error)
}

// Chat answers a conversation.
type Chat interface {
	Ask(ctx context.Context, apiKey, model string, messages []chat.Message) (string, error)
}

// Daemon puts the pieces of the composer together to serve the API.
type Daemon struct {
	V         string
	Validator *schema.Validator
	Builder   *compose.Builder
	Cluster   Cluster
	Chat      Chat
	Logger    log.Logger
}

// Invariant.
var (
	_ api.Server    = &Daemon{}
	_ api.Previewer = &Daemon{}
)

func (d *Daemon) Version(ctx context.Context) (string, error) {
	return d.V, nil
}

func (d *Daemon) Ping(ctx context.Context) error {
	return nil
}

func (d *Daemon) Models(ctx context.Context) ([]chat.Model, error) {
	return chat.Models(), nil
}

// Assemble makes the manifest for a resource group, and validates it.
func (d *Daemon) Assemble(ctx context.Context, req api.AssembleRequest) (api.AssembleResponse, error) {
	m := manifest.Assemble(req.CR, req.Group, req.Resources)
	text, err := manifest.Marshal(m)
	if err != nil {
		return api.AssembleResponse{}, err
	}
	res, err := d.validateManifest(sourceAssemble, m)
	if err != nil {
		return api.AssembleResponse{}, err
	}
	return api.AssembleResponse{
		Manifest: string(text),
		Valid:    res.Valid,
		Errors:   res.Errors,
	}, nil
}

func (d *Daemon) Validate(ctx context.Context, req api.ValidateRequest) (schema.Result, error) {
	return d.validateText(sourceValidate, []byte(req.Manifest))
}

// Apply validates the manifest and, if it passes, gives it to the
// cluster. A manifest failing validation is never applied.
func (d *Daemon) Apply(ctx context.Context, req api.ApplyRequest) (api.ApplyResponse, error) {
	text := []byte(req.Manifest)
	if len(bytes.TrimSpace(text)) == 0 {
		return api.ApplyResponse{}, kubectl.ErrNoManifest
	}
	res, err := d.validateText(sourceApply, text)
	if err != nil {
		return api.ApplyResponse{}, err
	}
	if !res.Valid {
		return api.ApplyResponse{}, validationFailed(res)
	}

	output, err := d.Cluster.Apply(ctx, text)
	if err != nil {
		d.Logger.Log("method", "Apply", "err", err)
		return api.ApplyResponse{}, err
	}
	return api.ApplyResponse{Success: true, Output: output}, nil
}

func (d *Daemon) Ask(ctx context.Context, req api.AskRequest) (api.AskResponse, error) {
	answer, err := d.Chat.Ask(ctx, req.APIKey, req.Model, req.Messages)
	if err != nil {
		return api.AskResponse{}, err
	}
	return api.AskResponse{Answer: answer}, nil
}

// Preview applies op to the session and reports where the session
// stands afterwards. A failed op leaves the session as it was, and its
// error is reported along with the state.
func (d *Daemon) Preview(ctx context.Context, s *compose.Session, op api.PreviewOp) api.PreviewState {
	var state api.PreviewState
	if err := d.apply(s, op); err != nil {
		state.Error = fluxerr.Message(err)
	}

	m := s.Manifest()
	text, err := manifest.Marshal(m)
	if err != nil {
		state.Error = fluxerr.Message(err)
	}
	state.Manifest = string(text)
	state.Names = s.Names()
	state.Steps = s.Steps()

	res, err := d.validateManifest(sourcePreview, m)
	if err != nil {
		state.Error = fluxerr.Message(err)
		res.Errors = []schema.Error{}
	}
	state.Valid = res.Valid
	state.Errors = res.Errors
	return state
}

func (d *Daemon) apply(s *compose.Session, op api.PreviewOp) error {
	switch op.Op {
	case api.OpCR:
		if op.CR == nil {
			return missingArgument(op.Op, "cr")
		}
		return s.SetCR(*op.CR)
	case api.OpGroup:
		if op.Group == nil {
			return missingArgument(op.Op, "group")
		}
		return s.SetGroup(*op.Group)
	case api.OpAdd:
		if op.Resource == nil {
			return missingArgument(op.Op, "resource")
		}
		spec, err := d.Builder.Build(*op.Resource)
		if err != nil {
			return err
		}
		return s.Add(spec)
	case api.OpRemove:
		if op.Index == nil {
			return missingArgument(op.Op, "index")
		}
		return s.Remove(*op.Index)
	case api.OpReset:
		s.Reset()
		return nil
	case api.OpRefresh:
		return nil
	}
	return unknownOp(op.Op)
}

func (d *Daemon) validateManifest(source string, m manifest.Manifest) (schema.Result, error) {
	if !d.Validator.Enabled() {
		observeValidation(source, schema.Result{Valid: true}, nil, false)
		return schema.Result{Valid: true, Errors: []schema.Error{}}, nil
	}
	doc, err := manifest.Document(m)
	if err != nil {
		return schema.Result{}, err
	}
	res, err := d.Validator.Validate(doc)
	observeValidation(source, res, err, true)
	return res, err
}

func (d *Daemon) validateText(source string, text []byte) (schema.Result, error) {
	res, err := d.Validator.ValidateYAML(text)
	observeValidation(source, res, err, d.Validator.Enabled())
	if err != nil {
		return schema.Result{}, invalidManifest(err)
	}
	return res, nil
}

func missingArgument(op, arg string) error {
	return userError(fmt.Sprintf("op %q needs %s", op, arg))
}
