package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/rgcomposer/pkg/chat"
	"github.com/fluxcd/rgcomposer/pkg/compose"
	"github.com/fluxcd/rgcomposer/pkg/daemon"
	daemonhttp "github.com/fluxcd/rgcomposer/pkg/http/daemon"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

const crdPath = "../../pkg/schema/testdata/generic-crd.yaml"

const groupFile = `
cr:
  name: demo
group:
  name: app
  labels:
    team: web
resources:
- apiVersion: apps/v1
  kind: Deployment
  config:
    replicas: 2
`

type mockCluster struct {
	applied []string
}

func (c *mockCluster) Apply(ctx context.Context, manifest []byte) (string, error) {
	c.applied = append(c.applied, string(manifest))
	return "genericresourcegroup.kro.run/demo created\n", nil
}

type mockChat struct {
	apiKey   string
	messages []chat.Message
}

func (c *mockChat) Ask(ctx context.Context, apiKey, model string, messages []chat.Message) (string, error) {
	if apiKey == "" {
		return "", chat.ErrMissingFields
	}
	c.apiKey, c.messages = apiKey, messages
	return "Use a Service.", nil
}

type testEnv struct {
	url     string
	cluster *mockCluster
	chat    *mockChat
	dir     string
}

func setup(t *testing.T) (*testEnv, func()) {
	v, err := schema.Load(crdPath)
	require.NoError(t, err)
	env := &testEnv{cluster: &mockCluster{}, chat: &mockChat{}}
	d := &daemon.Daemon{
		V:         "1.0.0",
		Validator: v,
		Builder:   compose.NewBuilder([]string{"*/Namespace"}),
		Cluster:   env.cluster,
		Chat:      env.chat,
		Logger:    log.NewNopLogger(),
	}
	srv := httptest.NewServer(daemonhttp.NewHandler(d, daemonhttp.NewRouter(), daemonhttp.Options{}))
	env.url = srv.URL

	env.dir, err = ioutil.TempDir("", "composerctl-test")
	require.NoError(t, err)
	return env, func() {
		srv.Close()
		os.RemoveAll(env.dir)
	}
}

func (env *testEnv) file(t *testing.T, name, content string) string {
	path := filepath.Join(env.dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

// run runs composerctl against the test server.
func (env *testEnv) run(args ...string) (string, string, error) {
	return runWithInput("", append([]string{"--url", env.url}, args...)...)
}

func runWithInput(stdin string, args ...string) (string, string, error) {
	cmd := newRoot().Command()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := runWithInput("", "version")
	require.NoError(t, err)
	assert.Equal(t, "unversioned\n", out)

	_, _, err = runWithInput("", "version", "extra")
	assert.Equal(t, errorWantedNoArgs, err)
}

func TestModels(t *testing.T) {
	env, done := setup(t)
	defer done()

	out, _, err := env.run("models")
	require.NoError(t, err)
	assert.Contains(t, out, "MODEL")
	for _, m := range chat.Models() {
		assert.Contains(t, out, m.Value)
	}
}

func TestURLFromEnv(t *testing.T) {
	env, done := setup(t)
	defer done()

	os.Setenv(EnvVariableURL, env.url)
	defer os.Unsetenv(EnvVariableURL)
	_, _, err := runWithInput("", "models")
	assert.NoError(t, err)
}

func TestAssemble(t *testing.T) {
	env, done := setup(t)
	defer done()
	group := env.file(t, "group.yaml", groupFile)

	out, _, err := env.run("assemble", "-f", group)
	require.NoError(t, err)
	assert.Contains(t, out, "kind: GenericResourceGroup")
	assert.Contains(t, out, "team: web")

	// locally, with the same schema
	output := filepath.Join(env.dir, "rg.yaml")
	_, _, err = runWithInput("", "assemble", "-f", group, "--schema", crdPath, "-o", output)
	require.NoError(t, err)
	written, err := ioutil.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, out, string(written))
}

func TestAssembleInvalid(t *testing.T) {
	_, errOut, err := runWithInput(`{"cr": {}, "group": {}, "resources": []}`, "assemble", "-f", "-", "--schema", crdPath)
	assert.Equal(t, errInvalid, err)
	assert.Contains(t, errOut, "PATH")
}

func TestAssembleNeedsFile(t *testing.T) {
	_, _, err := runWithInput("", "assemble", "--local")
	_, ok := err.(usageError)
	assert.True(t, ok, "expected a usage error, got %v", err)
}

func TestValidateAndApply(t *testing.T) {
	env, done := setup(t)
	defer done()
	group := env.file(t, "group.yaml", groupFile)

	manifest, _, err := env.run("assemble", "-f", group)
	require.NoError(t, err)

	out, _, err := runWithInput(manifest, "--url", env.url, "validate", "-f", "-")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, _, err = runWithInput(manifest, "--url", env.url, "apply", "-f", "-")
	require.NoError(t, err)
	assert.Equal(t, "genericresourcegroup.kro.run/demo created\n", out)
	assert.Equal(t, []string{manifest}, env.cluster.applied)
}

func TestApplyRefused(t *testing.T) {
	env, done := setup(t)
	defer done()

	_, _, err := runWithInput("kind: GenericResourceGroup\n", "--url", env.url, "apply", "-f", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Validation failed")
	assert.Empty(t, env.cluster.applied)
}

func TestAsk(t *testing.T) {
	env, done := setup(t)
	defer done()
	history := env.file(t, "chat.yaml", `
- role: user
  content: How do I expose a deployment?
- role: assistant
  content: With a Service.
`)

	_, _, err := env.run("ask", "What", "kind?")
	assert.Error(t, err, "no API key")

	os.Setenv(EnvVariableAPIKey, "sk-test")
	defer os.Unsetenv(EnvVariableAPIKey)
	out, _, err := env.run("ask", "--system", "Be brief.", "--history", history, "What", "kind?")
	require.NoError(t, err)
	assert.Equal(t, "Use a Service.\n", out)
	assert.Equal(t, "sk-test", env.chat.apiKey)
	assert.Equal(t, []chat.Message{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "How do I expose a deployment?"},
		{Role: "assistant", Content: "With a Service."},
		{Role: "user", Content: "What kind?"},
	}, env.chat.messages)
}

func TestPreview(t *testing.T) {
	env, done := setup(t)
	defer done()
	edits := env.file(t, "edits.yaml", `
- op: cr
  cr: {name: demo}
- op: group
  group:
    name: app
- op: add
  resource:
    apiVersion: v1
    kind: Secret
    data:
    - {key: password, value: hunter2}
- op: add
  resource:
    apiVersion: v1
    kind: Namespace
`)

	out, errOut, err := env.run("preview", "-f", edits, "-v")
	assert.EqualError(t, err, "1 of 4 edits refused")
	assert.Contains(t, out, "aHVudGVyMg==")
	assert.NotContains(t, out, "kind: Namespace")
	assert.Contains(t, errOut, "edit 3 (add)")
	assert.Contains(t, errOut, "app-secret-0")
}
