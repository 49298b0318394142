package websocket

import (
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type DialErr struct {
	URL          *url.URL
	HTTPResponse *http.Response
}

func (de DialErr) Error() string {
	if de.URL != nil && de.HTTPResponse != nil {
		return fmt.Sprintf("connecting to websocket %s (http status code = %v)", de.URL, de.HTTPResponse.StatusCode)
	}
	return "connecting to websocket (unknown error)"
}

// Dial initiates a new websocket connection. The scheme of u is
// switched to ws or wss to match http or https.
func Dial(client *http.Client, ua string, u *url.URL) (Websocket, error) {
	wsURL := *u
	switch wsURL.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	}

	req, err := http.NewRequest("GET", wsURL.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", &wsURL)
	}
	req.Header.Set("User-Agent", ua)

	conn, resp, err := dialer(client).Dial(wsURL.String(), req.Header)
	if err != nil {
		if resp != nil {
			err = &DialErr{&wsURL, resp}
		}
		return nil, err
	}

	// Set up the ping heartbeat
	return Ping(conn), nil
}

func dialer(client *http.Client) *websocket.Dialer {
	return &websocket.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			return net.DialTimeout(network, addr, client.Timeout)
		},
		HandshakeTimeout: client.Timeout,
		Jar:              client.Jar,
	}
}
