package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
)

func TestStatusCode(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{fluxerr.UserError("bad"), http.StatusUnprocessableEntity},
		{&fluxerr.Error{Type: fluxerr.Missing, Err: errors.New("gone")}, http.StatusNotFound},
		{&fluxerr.Error{Type: fluxerr.Upstream, Err: errors.New("x")}, http.StatusInternalServerError},
		{pkgerrors.Wrap(fluxerr.UserError("wrapped"), "context"), http.StatusUnprocessableEntity},
		{errors.New("plain"), http.StatusInternalServerError},
	} {
		assert.Equal(t, tc.want, StatusCode(tc.err), tc.err.Error())
	}
}

func TestErrorResponseJSON(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/ping", nil)
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	ErrorResponse(w, r, fluxerr.UserError("apiVersion and kind are required"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var got fluxerr.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, fluxerr.User, got.Type)
	assert.Equal(t, "apiVersion and kind are required", got.Help)
}

func TestErrorResponseText(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/ping", nil)
	w := httptest.NewRecorder()
	ErrorResponse(w, r, errors.New("something broke"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "something broke", w.Body.String())

	r.Header.Set("Accept", "text/plain")
	w = httptest.NewRecorder()
	ErrorResponse(w, r, errors.New("something broke"))
	assert.Contains(t, w.Body.String(), "We don't have a specific help message")
}

func TestMakeURL(t *testing.T) {
	u, err := MakeURL("http://localhost:3030/prefix", NewAPIRouter(), Apply)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3030/prefix/api/apply", u.String())

	_, err = MakeURL("http://localhost:3030", NewAPIRouter(), "NoSuchRoute")
	assert.Error(t, err)
}
