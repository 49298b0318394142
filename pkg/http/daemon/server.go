package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/weaveworks/common/middleware"

	"github.com/fluxcd/rgcomposer/pkg/api"
	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
	transport "github.com/fluxcd/rgcomposer/pkg/http"
	"github.com/fluxcd/rgcomposer/pkg/http/websocket"
	fluxmetrics "github.com/fluxcd/rgcomposer/pkg/metrics"
)

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "composer",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{fluxmetrics.LabelMethod, fluxmetrics.LabelRoute, "status_code", "ws"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

// An API server for the composer
func NewRouter() *mux.Router {
	r := transport.NewAPIRouter()

	// Every request that doesn't match a route is a client calling an
	// API we don't have.
	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, http.StatusNotFound, transport.MakeAPINotFound(r.URL.Path))
	})

	return r
}

// Options are the settings of the handler that are not part of the
// API itself.
type Options struct {
	// AllowedOrigins are the origins, as glob patterns, of pages that
	// may call the API from a browser. None means same-origin only.
	AllowedOrigins []string
	Logger         log.Logger
}

func NewHandler(s api.Server, r *mux.Router, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	handle := HTTPServer{
		server:   s,
		upgrader: websocket.NewUpgrader(opts.AllowedOrigins),
		logger:   logger,
	}

	r.Get(transport.Ping).HandlerFunc(handle.Ping)
	r.Get(transport.Version).HandlerFunc(handle.Version)
	r.Get(transport.Models).HandlerFunc(handle.Models)

	r.Get(transport.Assemble).HandlerFunc(handle.Assemble)
	r.Get(transport.Validate).HandlerFunc(handle.Validate)
	r.Get(transport.Apply).HandlerFunc(handle.Apply)
	r.Get(transport.Ask).HandlerFunc(handle.Ask)

	r.Get(transport.Preview).HandlerFunc(handle.Preview)

	return middleware.Merge(
		requestID,
		logging(logger),
		middleware.Instrument{
			RouteMatcher: r,
			Duration:     requestDuration,
		},
		withCORS(opts.AllowedOrigins),
	).Wrap(r)
}

type HTTPServer struct {
	server   api.Server
	upgrader *websocket.Upgrader
	logger   log.Logger
}

func (s HTTPServer) Ping(w http.ResponseWriter, r *http.Request) {
	if err := s.server.Ping(r.Context()); err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	return
}

func (s HTTPServer) Version(w http.ResponseWriter, r *http.Request) {
	version, err := s.server.Version(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, version)
}

func (s HTTPServer) Models(w http.ResponseWriter, r *http.Request) {
	models, err := s.server.Models(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, models)
}

func (s HTTPServer) Assemble(w http.ResponseWriter, r *http.Request) {
	var req api.AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, transport.MakeBadRequest(err))
		return
	}
	res, err := s.server.Assemble(r.Context(), req)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, res)
}

func (s HTTPServer) Validate(w http.ResponseWriter, r *http.Request) {
	var req api.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, transport.MakeBadRequest(err))
		return
	}
	res, err := s.server.Validate(r.Context(), req)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, res)
}

// Apply answers with an api.ApplyResponse whether or not the apply
// worked: 400 for anything wrong with the manifest, 500 for anything
// wrong with applying it.
func (s HTTPServer) Apply(w http.ResponseWriter, r *http.Request) {
	var req api.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.JSONStatusResponse(w, r, http.StatusBadRequest, api.ApplyResponse{Error: transport.MakeBadRequest(err).Help})
		return
	}
	res, err := s.server.Apply(r.Context(), req)
	if err != nil {
		transport.JSONStatusResponse(w, r, failureStatus(err), api.ApplyResponse{Error: fluxerr.Message(err)})
		return
	}
	transport.JSONResponse(w, r, res)
}

// Ask answers with an api.AskResponse: 400 for a request that is
// missing something, 500 for a failure upstream.
func (s HTTPServer) Ask(w http.ResponseWriter, r *http.Request) {
	var req api.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.JSONStatusResponse(w, r, http.StatusBadRequest, api.AskResponse{Error: transport.MakeBadRequest(err).Help})
		return
	}
	res, err := s.server.Ask(r.Context(), req)
	if err != nil {
		transport.JSONStatusResponse(w, r, failureStatus(err), api.AskResponse{Error: fluxerr.Message(err)})
		return
	}
	transport.JSONResponse(w, r, res)
}

// Preview upgrades to a websocket and runs a preview session on it.
func (s HTTPServer) Preview(w http.ResponseWriter, r *http.Request) {
	p, ok := s.server.(api.Previewer)
	if !ok {
		transport.ErrorResponse(w, r, &fluxerr.Error{
			Type: fluxerr.Missing,
			Help: "This server does not host preview sessions.",
			Err:  errors.New("preview not supported"),
		})
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered.
		s.logger.Log("route", transport.Preview, "err", err)
		return
	}
	defer ws.Close()

	logger := log.With(s.logger, "route", transport.Preview, "request_id", r.Header.Get(requestIDHeader))
	if err := websocket.ServePreview(r.Context(), p, ws, logger); err != nil {
		logger.Log("err", err)
	}
}

func failureStatus(err error) int {
	if fluxerr.IsUser(errors.Cause(err)) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
