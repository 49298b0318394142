package http

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func handleAll(r *mux.Router) *mux.Router {
	r.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		route.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		return nil
	})
	return r
}

func TestImplementsServer(t *testing.T) {
	assert.NoError(t, ImplementsServer(handleAll(NewAPIRouter())))

	// no handlers
	assert.Error(t, ImplementsServer(NewAPIRouter()))

	// a route missing
	r := mux.NewRouter()
	r.NewRoute().Name(Ping).Methods("GET").Path("/api/ping")
	assert.Error(t, ImplementsServer(handleAll(r)))
}

// rebuild copies NewAPIRouter, letting edit change the methods or
// path of each route.
func rebuild(edit func(name string, methods []string, path string) ([]string, string)) *mux.Router {
	r := mux.NewRouter()
	NewAPIRouter().Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := route.GetPathTemplate()
		methods, _ := route.GetMethods()
		methods, path = edit(route.GetName(), methods, path)
		r.NewRoute().Name(route.GetName()).Methods(methods...).Path(path)
		return nil
	})
	return handleAll(r)
}

func TestImplementsServerMethodAndPath(t *testing.T) {
	same := rebuild(func(_ string, methods []string, path string) ([]string, string) {
		return methods, path
	})
	assert.NoError(t, ImplementsServer(same))

	wrongMethod := rebuild(func(name string, methods []string, path string) ([]string, string) {
		if name == Apply {
			return []string{"PUT"}, path
		}
		return methods, path
	})
	assert.EqualError(t, ImplementsServer(wrongMethod), `route "Apply" answers [PUT], expected [POST]`)

	wrongPath := rebuild(func(name string, methods []string, path string) ([]string, string) {
		if name == Ask {
			return methods, "/api/chat"
		}
		return methods, path
	})
	assert.EqualError(t, ImplementsServer(wrongPath), `route "Ask" is at /api/chat, expected /api/ask`)
}
