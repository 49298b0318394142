package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType chooses which of the content types we can
// write, listed best first, to answer a request with. The highest
// quality (`q`) match in the Accept header wins; among equals, the
// one we prefer. No Accept header means our first choice, and no
// match at all means "".
func negotiateContentType(r *http.Request, orderedPref []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return orderedPref[0]
	}

	var acceptable []header.AcceptSpec
	for _, spec := range specs {
		if indexOf(orderedPref, spec.Value) < len(orderedPref) {
			acceptable = append(acceptable, spec)
		}
	}
	if len(acceptable) == 0 {
		return ""
	}
	sort.SliceStable(acceptable, func(i, j int) bool {
		a, b := acceptable[i], acceptable[j]
		if a.Q != b.Q {
			return a.Q > b.Q
		}
		return indexOf(orderedPref, a.Value) < indexOf(orderedPref, b.Value)
	})
	return acceptable[0].Value
}

// indexOf gives len(ss) when search is absent, so that absent sorts
// after present.
func indexOf(ss []string, search string) int {
	for i, s := range ss {
		if s == search {
			return i
		}
	}
	return len(ss)
}
