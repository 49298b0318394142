package http

import (
	"errors"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
)

func MakeAPINotFound(path string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Help: `The API endpoint requested is not supported by this server.

This indicates that your client (probably composerctl) is either out
of date, or faulty. If you still have problems after upgrading, please
file an issue at

    https://github.com/fluxcd/rgcomposer/issues

mentioning what you were attempting to do, and include this path:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}

// MakeBadRequest is for request bodies that can't be decoded.
func MakeBadRequest(err error) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Help: "The request body could not be decoded: " + err.Error(),
		Err:  err,
	}
}
