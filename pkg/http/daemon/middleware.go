package daemon

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/weaveworks/common/middleware"
)

const requestIDHeader = "X-Request-ID"

// requestID gives every request an ID, unless the client sent one, and
// returns it in the response.
var requestID = middleware.Func(func(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
})

func logging(logger log.Logger) middleware.Interface {
	return middleware.Func(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Log(
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"took", time.Since(begin),
				"request_id", r.Header.Get(requestIDHeader),
			)
		})
	})
}

// statusWriter remembers the status written. It can be hijacked, so
// websockets pass through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// withCORS lets pages at the allowed origins call the API. With no
// origins, it does nothing, and browsers keep to same-origin.
func withCORS(allowedOrigins []string) middleware.Interface {
	if len(allowedOrigins) == 0 {
		return middleware.Func(func(next http.Handler) http.Handler { return next })
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Accept", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return middleware.Func(c.Handler)
}
