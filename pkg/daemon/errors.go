package daemon

import (
	"errors"
	"fmt"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

func userError(msg string) error {
	return fluxerr.UserError(msg)
}

// validationFailed is returned when asked to apply a manifest that
// does not pass validation. The help text lists every violation.
func validationFailed(res schema.Result) error {
	msg := "Validation failed: " + res.Summary()
	return &fluxerr.Error{
		Type: fluxerr.User,
		Help: msg,
		Err:  errors.New(msg),
	}
}

func invalidManifest(reason error) error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  reason,
		Help: `Unable to parse the manifest

The manifest could not be read as YAML, giving this error:

    ` + reason.Error() + `

Check that the text is a single well-formed YAML document.
`,
	}
}

func unknownOp(op string) error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Err:  fmt.Errorf("unknown preview op %q", op),
		Help: fmt.Sprintf("Unknown op %q; expected one of cr, group, add, remove, reset or refresh.", op),
	}
}
