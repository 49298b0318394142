package http

import (
	"fmt"
	"reflect"

	"github.com/gorilla/mux"
)

// ImplementsServer checks that router serves every route in
// NewAPIRouter: under the same name, at the same path, for the same
// methods, and with a handler attached. The client builds its requests
// from NewAPIRouter, so a router that passes answers every call the
// client makes.
func ImplementsServer(router *mux.Router) error {
	return NewAPIRouter().Walk(func(want *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		name := want.GetName()
		got := router.Get(name)
		if got == nil {
			return fmt.Errorf("no route by name %q in router", name)
		}
		if got.GetHandler() == nil {
			return fmt.Errorf("no handler for route %q in router", name)
		}

		wantPath, err := want.GetPathTemplate()
		if err != nil {
			return err
		}
		gotPath, err := got.GetPathTemplate()
		if err != nil {
			return fmt.Errorf("route %q: %s", name, err)
		}
		if gotPath != wantPath {
			return fmt.Errorf("route %q is at %s, expected %s", name, gotPath, wantPath)
		}

		wantMethods, _ := want.GetMethods()
		gotMethods, _ := got.GetMethods()
		if !reflect.DeepEqual(gotMethods, wantMethods) {
			return fmt.Errorf("route %q answers %v, expected %v", name, gotMethods, wantMethods)
		}
		return nil
	})
}
