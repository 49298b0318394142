package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/rgcomposer/pkg/errors"
)

func NewAPIRouter() *mux.Router {
	r := mux.NewRouter()

	r.NewRoute().Name(Ping).Methods("GET").Path("/api/ping")
	r.NewRoute().Name(Version).Methods("GET").Path("/api/version")
	r.NewRoute().Name(Models).Methods("GET").Path("/api/models")

	r.NewRoute().Name(Assemble).Methods("POST").Path("/api/assemble")
	r.NewRoute().Name(Validate).Methods("POST").Path("/api/validate")
	r.NewRoute().Name(Apply).Methods("POST").Path("/api/apply")
	r.NewRoute().Name(Ask).Methods("POST").Path("/api/ask")

	r.NewRoute().Name(Preview).Methods("GET").Path("/api/preview")

	return r
}

func MakeURL(endpoint string, router *mux.Router, routeName string, urlParams ...string) (*url.URL, error) {
	if len(urlParams)%2 != 0 {
		panic("urlParams must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	routeURL, err := route.URLPath()
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	v := url.Values{}
	for i := 0; i < len(urlParams); i += 2 {
		v.Add(urlParams[i], urlParams[i+1])
	}

	endpointURL.Path = path.Join(endpointURL.Path, routeURL.Path)
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// Clients that can decode JSON errors say so with an Accept
	// header; anyone else (curl, say) gets the error text.
	if len(r.Header.Get("Accept")) > 0 {
		switch negotiateContentType(r, []string{"application/json", "text/plain"}) {
		case "application/json":
			body, encodeErr := json.Marshal(err)
			if encodeErr != nil {
				w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "Error encoding error response: %s\n\nOriginal error: %s", encodeErr.Error(), err.Error())
				return
			}
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(body)
			return
		case "text/plain":
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
			w.WriteHeader(code)
			switch err := err.(type) {
			case *fluxerr.Error:
				fmt.Fprint(w, err.Help)
			default:
				fmt.Fprint(w, err.Error())
			}
			return
		}
	}
	w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, err.Error())
}

func JSONResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	JSONStatusResponse(w, r, http.StatusOK, result)
}

// JSONStatusResponse is for endpoints that answer in JSON whatever
// happens, with the status code saying how it went.
func JSONStatusResponse(w http.ResponseWriter, r *http.Request, code int, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}

// StatusCode is the HTTP status for err, by the type of error it is.
func StatusCode(err error) int {
	outErr, ok := errors.Cause(err).(*fluxerr.Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch outErr.Type {
	case fluxerr.Missing:
		return http.StatusNotFound
	case fluxerr.User:
		return http.StatusUnprocessableEntity
	case fluxerr.Server, fluxerr.Upstream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	var outErr *fluxerr.Error
	var ok bool

	err := errors.Cause(apiError)
	if outErr, ok = err.(*fluxerr.Error); !ok {
		outErr = fluxerr.CoverAllError(apiError)
	}
	WriteError(w, r, StatusCode(outErr), outErr)
}
