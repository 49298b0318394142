// Package kubectl applies manifests to a cluster by running kubectl.
package kubectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/metrics"
)

// MinimumClientVersion is the oldest kubectl known to apply resource
// groups correctly.
var MinimumClientVersion = semver.MustParse("1.16.0")

// ErrNoManifest is returned by Apply when it's given nothing to apply.
var ErrNoManifest = fluxerr.UserError("No manifest provided")

// Options say which cluster kubectl talks to. Empty fields leave the
// choice to kubectl.
type Options struct {
	Kubeconfig string
	Context    string
}

type Kubectl struct {
	exe    string
	opts   Options
	logger log.Logger
}

func New(exe string, opts Options, logger log.Logger) *Kubectl {
	if exe == "" {
		exe = "kubectl"
	}
	return &Kubectl{
		exe:    exe,
		opts:   opts,
		logger: logger,
	}
}

// ExitError is returned when kubectl ran and exited with a non-zero
// status.
type ExitError struct {
	Code   int
	Stdout string
	Stderr string
}

// Error is the text kubectl gave as its reason: what it wrote to
// stderr, or failing that to stdout.
func (e *ExitError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		return s
	}
	return fmt.Sprintf("kubectl exited with code %d", e.Code)
}

// Apply runs `kubectl apply -f -` with manifest on stdin, and returns
// what kubectl printed. It waits for kubectl to exit; cancelling ctx
// kills it. Nothing is retried, and a partial apply is left as it is.
func (c *Kubectl) Apply(ctx context.Context, manifest []byte) (output string, err error) {
	if len(bytes.TrimSpace(manifest)) == 0 {
		return "", ErrNoManifest
	}
	defer func(begin time.Time) {
		applyDuration.With(
			metrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())

	stdout, err := c.doCommand(ctx, manifest, "apply", "-f", "-")
	return stdout, err
}

// ClientVersion asks kubectl for its own version.
func (c *Kubectl) ClientVersion(ctx context.Context) (*semver.Version, error) {
	out, err := c.doCommand(ctx, nil, "version", "--client", "-o", "json")
	if err != nil {
		return nil, err
	}
	var v struct {
		ClientVersion struct {
			GitVersion string `json:"gitVersion"`
		} `json:"clientVersion"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		return nil, errors.Wrap(err, "parsing kubectl version")
	}
	version, err := semver.NewVersion(v.ClientVersion.GitVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing kubectl version %q", v.ClientVersion.GitVersion)
	}
	return version, nil
}

// Supported reports whether a kubectl of version v is new enough.
func Supported(v *semver.Version) bool {
	// Prereleases of the minimum are fine too.
	base, _ := v.SetPrerelease("")
	return !base.LessThan(MinimumClientVersion)
}

func (c *Kubectl) connectArgs() []string {
	var args []string
	if c.opts.Kubeconfig != "" {
		args = append(args, fmt.Sprintf("--kubeconfig=%s", c.opts.Kubeconfig))
	}
	if c.opts.Context != "" {
		args = append(args, fmt.Sprintf("--context=%s", c.opts.Context))
	}
	return args
}

func (c *Kubectl) kubectlCommand(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, c.exe, append(c.connectArgs(), args...)...)
}

func (c *Kubectl) doCommand(ctx context.Context, stdin []byte, args ...string) (string, error) {
	cmd := c.kubectlCommand(ctx, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout := &bytes.Buffer{}
	cmd.Stdout = stdout

	begin := time.Now()
	err := cmd.Run()
	switch exitErr, ok := err.(*exec.ExitError); {
	case err == nil:
	case ctx.Err() != nil:
		err = errors.Wrap(ctx.Err(), "running kubectl")
	case ok:
		err = &ExitError{
			Code:   exitErr.ExitCode(),
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
	default:
		err = &fluxerr.Error{
			Type: fluxerr.Server,
			Help: "kubectl could not be run; check that " + c.exe + " is installed and executable.",
			Err:  errors.Wrap(err, "running kubectl"),
		}
	}

	c.logger.Log("cmd", "kubectl "+strings.Join(args, " "), "took", time.Since(begin), "err", err, "output", strings.TrimSpace(stdout.String()))
	return stdout.String(), err
}
