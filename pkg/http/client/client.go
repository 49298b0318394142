package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/fluxcd/rgcomposer/pkg/api"
	"github.com/fluxcd/rgcomposer/pkg/chat"
	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	transport "github.com/fluxcd/rgcomposer/pkg/http"
	"github.com/fluxcd/rgcomposer/pkg/http/httperror"
	"github.com/fluxcd/rgcomposer/pkg/http/websocket"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

type Client struct {
	client    *http.Client
	router    *mux.Router
	endpoint  string
	userAgent string
}

var _ api.Server = &Client{}

func New(c *http.Client, router *mux.Router, endpoint, userAgent string) *Client {
	return &Client{
		client:    c,
		router:    router,
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Get(ctx, nil, transport.Ping)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	err := c.Get(ctx, &v, transport.Version)
	return v, err
}

func (c *Client) Models(ctx context.Context) ([]chat.Model, error) {
	var res []chat.Model
	err := c.Get(ctx, &res, transport.Models)
	return res, err
}

func (c *Client) Assemble(ctx context.Context, req api.AssembleRequest) (api.AssembleResponse, error) {
	var res api.AssembleResponse
	err := c.methodWithResp(ctx, "POST", &res, transport.Assemble, req)
	return res, err
}

func (c *Client) Validate(ctx context.Context, req api.ValidateRequest) (schema.Result, error) {
	var res schema.Result
	err := c.methodWithResp(ctx, "POST", &res, transport.Validate, req)
	return res, err
}

// Apply returns the output of a successful apply. A failed apply is
// returned as an error carrying the server's explanation: a user error
// when the manifest was at fault, otherwise a server error.
func (c *Client) Apply(ctx context.Context, req api.ApplyRequest) (api.ApplyResponse, error) {
	var res api.ApplyResponse
	status, err := c.postForResult(ctx, &res, transport.Apply, req)
	if err != nil {
		return api.ApplyResponse{}, err
	}
	if !res.Success {
		return res, resultError(status, res.Error)
	}
	return res, nil
}

func (c *Client) Ask(ctx context.Context, req api.AskRequest) (api.AskResponse, error) {
	var res api.AskResponse
	status, err := c.postForResult(ctx, &res, transport.Ask, req)
	if err != nil {
		return api.AskResponse{}, err
	}
	if res.Error != "" {
		return res, resultError(status, res.Error)
	}
	return res, nil
}

// Preview opens a preview session. The first message from the server
// is the state of the new session.
func (c *Client) Preview(ctx context.Context) (websocket.Websocket, error) {
	u, err := transport.MakeURL(c.endpoint, c.router, transport.Preview)
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}
	return websocket.Dial(c.client, c.userAgent, u)
}

// PostWithBody is a more complex post request, which includes a json-ified body.
// If body is not nil, it is encoded to json before sending
func (c *Client) PostWithBody(ctx context.Context, route string, body interface{}, queryParams ...string) error {
	return c.methodWithResp(ctx, "POST", nil, route, body, queryParams...)
}

// methodWithResp is the full enchilada, it handles body and query-param
// encoding, as well as decoding the response into the provided destination.
// Note, the response will only be decoded into the dest if the len is > 0.
func (c *Client) methodWithResp(ctx context.Context, method string, dest interface{}, route string, body interface{}, queryParams ...string) error {
	req, err := c.newRequest(ctx, method, route, body, queryParams...)
	if err != nil {
		return err
	}

	resp, err := c.executeRequest(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	if len(respBytes) <= 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, &dest); err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	return nil
}

// postForResult is for the endpoints that answer with a result body
// whatever the status: it decodes the body into dest if it's JSON, and
// otherwise treats the response as methodWithResp would.
func (c *Client) postForResult(ctx context.Context, dest interface{}, route string, body interface{}) (int, error) {
	req, err := c.newRequest(ctx, "POST", route, body)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "reading response from server")
	}
	if !isJSON(resp) {
		return resp.StatusCode, &httperror.APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBytes),
		}
	}
	if err := json.Unmarshal(respBytes, dest); err != nil {
		return resp.StatusCode, errors.Wrap(err, "decoding response from server")
	}
	return resp.StatusCode, nil
}

// Get executes a get request against the composer. it unmarshals the response into dest, if not nil.
func (c *Client) Get(ctx context.Context, dest interface{}, route string, queryParams ...string) error {
	req, err := c.newRequest(ctx, "GET", route, nil, queryParams...)
	if err != nil {
		return err
	}

	resp, err := c.executeRequest(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return errors.Wrap(err, "decoding response from server")
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, route string, body interface{}, queryParams ...string) (*http.Request, error) {
	u, err := transport.MakeURL(c.endpoint, c.router, route, queryParams...)
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequest(method, u.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func (c *Client) executeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusAccepted:
		return resp, nil
	default:
		defer resp.Body.Close()
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return resp, errors.Wrap(err, "reading response body of error")
		}
		// Use the content type to discriminate between `fluxerr.Error`,
		// and the previous "any old error"
		if isJSON(resp) {
			var niceError fluxerr.Error
			if err := json.Unmarshal(body, &niceError); err != nil {
				return resp, errors.Wrap(err, "decoding response body of error")
			}
			// just in case it's JSON but not one of our own errors
			if niceError.Err != nil {
				return resp, &niceError
			}
			// fallthrough
		}
		return resp, &httperror.APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
}

func isJSON(resp *http.Response) bool {
	return strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json")
}

func resultError(status int, msg string) error {
	typ := fluxerr.Server
	if status == http.StatusBadRequest {
		typ = fluxerr.User
	}
	return &fluxerr.Error{Type: typ, Help: msg, Err: errors.New(msg)}
}
