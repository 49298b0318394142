package errors

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestErrorEncoding(t *testing.T) {
	errVal := &Error{
		Type: User,
		Help: "helpful text\nwith linebreaks!",
		Err:  errors.New("underlying error"),
	}
	bytes, err := json.Marshal(errVal)
	if err != nil {
		t.Fatal(err)
	}

	var got Error
	if err = json.Unmarshal(bytes, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(*errVal, got) {
		t.Errorf("error did not encode/decode faithfully, got %#v, expected %#v", got, *errVal)
	}
}

func TestTypePredicates(t *testing.T) {
	if !IsUser(UserError("no manifest")) {
		t.Error("expected UserError to be a user error")
	}
	if IsUser(errors.New("plain")) {
		t.Error("plain errors are not typed")
	}
	if !IsUpstream(&Error{Type: Upstream, Err: errors.New("rate limited")}) {
		t.Error("expected upstream error")
	}
	if !IsMissing(&Error{Type: Missing, Err: errors.New("gone")}) {
		t.Error("expected missing error")
	}
	if CoverAllError(errors.New("boom")).Type != Server {
		t.Error("cover-all errors are server errors")
	}
}

func TestMessage(t *testing.T) {
	if got := Message(UserError("No manifest provided")); got != "No manifest provided" {
		t.Errorf("expected help text, got %q", got)
	}
	wrapped := pkgerrors.Wrap(&Error{Type: Upstream, Help: "Rate limit reached", Err: errors.New("429")}, "asking")
	if got := Message(wrapped); got != "Rate limit reached" {
		t.Errorf("expected help of the cause, got %q", got)
	}
	if got := Message(errors.New("connection refused\n")); got != "connection refused" {
		t.Errorf("expected the error text, got %q", got)
	}
}
