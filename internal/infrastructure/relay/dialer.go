package relay

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const defaultDialTimeout = 10 * time.Second

// WSDialer dials the backend relay leg over websocket. The relay credential
// travels in a header so the node can bind the connection to its configured
// inbound without inspecting payload frames.
type WSDialer struct {
	// Scheme is "ws" or "wss". Backend nodes usually terminate TLS
	// themselves, so the default is wss.
	Scheme string
	// Path is the backend websocket endpoint.
	Path string
	// Timeout bounds the dial plus handshake.
	Timeout time.Duration
}

func NewWSDialer(scheme, path string, timeout time.Duration) *WSDialer {
	if scheme == "" {
		scheme = "wss"
	}
	if path == "" {
		path = "/sp-ws"
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &WSDialer{Scheme: scheme, Path: path, Timeout: timeout}
}

var _ BackendDialer = (*WSDialer)(nil)

func (d *WSDialer) Dial(ctx context.Context, addr, credentialID string) (*websocket.Conn, error) {
	u := url.URL{Scheme: d.Scheme, Host: addr, Path: d.Path}

	dialer := websocket.Dialer{HandshakeTimeout: d.Timeout}
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	header := http.Header{}
	header.Set("X-Relay-Credential", credentialID)

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
