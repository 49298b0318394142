package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/chat"
	"github.com/fluxcd/rgcomposer/pkg/cluster/kubectl"
	"github.com/fluxcd/rgcomposer/pkg/compose"
	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/kv"
	"github.com/fluxcd/rgcomposer/pkg/resource"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

const testVersion = "test"

const validManifest = `apiVersion: kro.run/v1alpha1
kind: GenericResourceGroup
metadata:
  name: demo
  namespace: default
spec:
  metadata:
    name: app
    namespace: default
    labels: {}
    annotations: {}
  resources:
  - apiVersion: apps/v1
    kind: Deployment
    config:
      replicas: 2
`

type mockCluster struct {
	applied [][]byte
	output  string
	err     error
}

func (c *mockCluster) Apply(ctx context.Context, manifest []byte) (string, error) {
	c.applied = append(c.applied, manifest)
	return c.output, c.err
}

type mockChat struct {
	answer string
	err    error
	asked  []chat.Message
}

func (c *mockChat) Ask(ctx context.Context, apiKey, model string, messages []chat.Message) (string, error) {
	c.asked = messages
	return c.answer, c.err
}

func daemon(t *testing.T) (*Daemon, *mockCluster, *mockChat) {
	v, err := schema.Load("../schema/testdata/generic-crd.yaml")
	require.NoError(t, err)
	cluster, ch := &mockCluster{output: "genericresourcegroup.kro.run/demo created\n"}, &mockChat{}
	return &Daemon{
		V:         testVersion,
		Validator: v,
		Builder:   compose.NewBuilder([]string{"*/Namespace"}),
		Cluster:   cluster,
		Chat:      ch,
		Logger:    log.NewNopLogger(),
	}, cluster, ch
}

func TestVersionAndModels(t *testing.T) {
	d, _, _ := daemon(t)
	ctx := context.Background()
	assert.NoError(t, d.Ping(ctx))
	v, err := d.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, testVersion, v)
	models, err := d.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, chat.Models(), models)
}

func TestAssemble(t *testing.T) {
	d, _, _ := daemon(t)
	var deployment resource.Spec
	deployment.APIVersion, deployment.Kind = "apps/v1", "Deployment"
	res, err := d.Assemble(context.Background(), api.AssembleRequest{
		CR:        resource.CRMetadata{Name: "demo"},
		Group:     resource.GroupMetadata{Name: "app"},
		Resources: []resource.Spec{deployment},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Contains(t, res.Manifest, "kind: GenericResourceGroup")

	res, err = d.Assemble(context.Background(), api.AssembleRequest{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Manifest, "resources: []")
}

func TestAssembleWithoutSchema(t *testing.T) {
	d, _, _ := daemon(t)
	d.Validator = schema.Disabled()
	res, err := d.Assemble(context.Background(), api.AssembleRequest{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.NotNil(t, res.Errors)
}

func TestValidate(t *testing.T) {
	d, _, _ := daemon(t)
	res, err := d.Validate(context.Background(), api.ValidateRequest{Manifest: validManifest})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = d.Validate(context.Background(), api.ValidateRequest{Manifest: "a: [b"})
	assert.True(t, fluxerr.IsUser(err))
}

func TestApply(t *testing.T) {
	d, cluster, _ := daemon(t)
	res, err := d.Apply(context.Background(), api.ApplyRequest{Manifest: validManifest})
	require.NoError(t, err)
	assert.Equal(t, api.ApplyResponse{Success: true, Output: cluster.output}, res)
	require.Len(t, cluster.applied, 1)
	assert.Equal(t, validManifest, string(cluster.applied[0]))
}

func TestApplyEmpty(t *testing.T) {
	d, cluster, _ := daemon(t)
	_, err := d.Apply(context.Background(), api.ApplyRequest{Manifest: " \n"})
	assert.Equal(t, kubectl.ErrNoManifest, err)
	assert.Empty(t, cluster.applied)
}

func TestApplyInvalid(t *testing.T) {
	d, cluster, _ := daemon(t)
	_, err := d.Apply(context.Background(), api.ApplyRequest{Manifest: "apiVersion: kro.run/v1alpha1\nkind: GenericResourceGroup\n"})
	require.Error(t, err)
	assert.True(t, fluxerr.IsUser(err))
	msg := fluxerr.Message(err)
	assert.Contains(t, msg, "Validation failed: ")
	assert.Contains(t, msg, "/metadata")
	assert.Empty(t, cluster.applied, "an invalid manifest must not be applied")
}

func TestApplyClusterFailure(t *testing.T) {
	d, cluster, _ := daemon(t)
	cluster.err = &kubectl.ExitError{Code: 1, Stderr: "error: connection refused\n"}
	_, err := d.Apply(context.Background(), api.ApplyRequest{Manifest: validManifest})
	require.Error(t, err)
	assert.Equal(t, "error: connection refused", fluxerr.Message(err))
}

func TestAsk(t *testing.T) {
	d, _, ch := daemon(t)
	ch.answer = "Use two."
	msgs := []chat.Message{{Role: "user", Content: "How many replicas?"}}
	res, err := d.Ask(context.Background(), api.AskRequest{APIKey: "sk", Model: "gpt-4", Messages: msgs})
	require.NoError(t, err)
	assert.Equal(t, "Use two.", res.Answer)
	assert.Equal(t, msgs, ch.asked)

	ch.err = errors.New("boom")
	_, err = d.Ask(context.Background(), api.AskRequest{})
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	d, _, _ := daemon(t)
	ctx := context.Background()
	s := compose.NewSession()

	state := d.Preview(ctx, s, api.PreviewOp{Op: api.OpRefresh})
	assert.Empty(t, state.Error)
	assert.False(t, state.Valid)
	assert.Equal(t, []bool{false, false, false, true}, state.Steps)

	state = d.Preview(ctx, s, api.PreviewOp{Op: api.OpCR, CR: &resource.CRMetadata{Name: "demo"}})
	assert.Empty(t, state.Error)
	state = d.Preview(ctx, s, api.PreviewOp{Op: api.OpGroup, Group: &compose.Group{
		Name:   "app",
		Labels: kv.List{{Key: "team", Value: "web"}},
	}})
	assert.Empty(t, state.Error)

	state = d.Preview(ctx, s, api.PreviewOp{Op: api.OpAdd, Resource: &compose.Form{
		APIVersion: "v1",
		Kind:       "Secret",
		Data:       kv.List{{Key: "password", Value: "hunter2"}},
	}})
	assert.Empty(t, state.Error)
	assert.True(t, state.Valid, "%v", state.Errors)
	assert.Equal(t, []string{"app-secret-0"}, state.Names)
	assert.Equal(t, []bool{true, true, true, true}, state.Steps)
	assert.Contains(t, state.Manifest, "aHVudGVyMg==")
	assert.Contains(t, state.Manifest, "team: web")

	state = d.Preview(ctx, s, api.PreviewOp{Op: api.OpAdd, Resource: &compose.Form{APIVersion: "v1", Kind: "Namespace"}})
	assert.Contains(t, state.Error, "may not be composed")
	assert.Equal(t, []string{"app-secret-0"}, state.Names)

	index := 3
	state = d.Preview(ctx, s, api.PreviewOp{Op: api.OpRemove, Index: &index})
	assert.NotEmpty(t, state.Error)
	index = 0
	state = d.Preview(ctx, s, api.PreviewOp{Op: api.OpRemove, Index: &index})
	assert.Empty(t, state.Error)
	assert.Empty(t, state.Names)

	state = d.Preview(ctx, s, api.PreviewOp{Op: api.OpReset})
	assert.Empty(t, state.Error)
	assert.Equal(t, resource.CRMetadata{}, s.CR())
}

func TestPreviewBadOps(t *testing.T) {
	d, _, _ := daemon(t)
	ctx := context.Background()
	s := compose.NewSession()
	for _, op := range []api.PreviewOp{
		{Op: "rename"},
		{Op: api.OpCR},
		{Op: api.OpGroup},
		{Op: api.OpAdd},
		{Op: api.OpRemove},
	} {
		state := d.Preview(ctx, s, op)
		assert.NotEmpty(t, state.Error, "op %q", op.Op)
		assert.NotEmpty(t, state.Manifest)
	}
}
