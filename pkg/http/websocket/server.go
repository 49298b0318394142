package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/ryanuber/go-glob"
)

// Upgrader upgrades connections from pages served at the allowed
// origins. Origins are glob patterns, e.g. "https://*.example.com";
// with none given, only same-origin requests are accepted.
type Upgrader struct {
	upgrader websocket.Upgrader
}

func NewUpgrader(allowedOrigins []string) *Upgrader {
	u := &Upgrader{}
	if len(allowedOrigins) > 0 {
		u.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, pattern := range allowedOrigins {
				if glob.Glob(pattern, origin) {
					return true
				}
			}
			return false
		}
	}
	return u
}

// Upgrade upgrades the HTTP server connection to the WebSocket protocol.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (Websocket, error) {
	wsConn, err := u.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		return nil, err
	}
	return Ping(wsConn), nil
}
