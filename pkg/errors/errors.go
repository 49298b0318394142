package errors

import (
	"encoding/json"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Representation of errors in the API. These are divided into a small
// number of categories, essentially distinguished by whose fault the
// error is; i.e., is this error:
//  - a problem with what the user sent, so not worth retrying as-is?
//  - a problem with the cluster tool or the service itself?
//  - a problem with the hosted model we relay chat to?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

type Type string

const (
	// The operation looked fine on paper, but something went wrong
	Server Type = "server"
	// The thing you mentioned, whatever it is, just doesn't exist
	Missing Type = "missing"
	// The request was malformed or incomplete; fix it before trying
	// again
	User Type = "user"
	// A service we depend on (the chat model API) refused or failed
	// the request
	Upstream Type = "upstream"
)

func IsMissing(err error) bool {
	return is(err, Missing)
}

func IsUser(err error) bool {
	return is(err, User)
}

func IsUpstream(err error) bool {
	return is(err, Upstream)
}

func is(err error, t Type) bool {
	if err, ok := err.(*Error); ok && err.Type == t {
		return true
	}
	return false
}

// UserError wraps a message describing a bad request. The help text
// is the message itself, since there is nothing more to say.
func UserError(msg string) *Error {
	return &Error{
		Type: User,
		Help: msg,
		Err:  errors.New(msg),
	}
}

// Message is the text to show a user for err: the help of the *Error
// at its cause, if there is one with help, otherwise err's own text.
func Message(err error) string {
	if cause, ok := pkgerrors.Cause(err).(*Error); ok && cause.Help != "" {
		return cause.Help
	}
	return strings.TrimSpace(err.Error())
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `Error: ` + err.Error() + `

We don't have a specific help message for the error above.

It would help us remedy this if you log an issue at

    https://github.com/fluxcd/rgcomposer/issues

saying what you were doing when you saw this, and quoting the message
at the top.
`,
	}
}
