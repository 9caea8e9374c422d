package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"sealed_socket/internal/model"
	"sealed_socket/internal/transport"
)

type (
	Client struct {
		*endpoint

		url    string
		dialer *websocket.Dialer

		mu   sync.RWMutex
		link *link
	}
)

// NewClient accepts http(s) or ws(s) addresses. The socket path defaults
// to DefaultPath.
func NewClient(opts transport.ClientOptions) (transport.ClientConn, error) {
	u, err := socketURL(opts.Address, opts.Path)
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint: newEndpoint(),
		url:      u,
		dialer:   websocket.DefaultDialer,
	}, nil
}

func socketURL(address, path string) (string, error) {
	if !strings.Contains(address, "://") {
		address = "ws://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", address, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("address %q: unsupported scheme %q", address, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("address %q: missing host", address)
	}

	if path != "" {
		u.Path = path
	} else if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}
	return u.String(), nil
}

// Connect dials the server, replacing any current connection. Handlers
// for transport.EventConnect run before Connect returns.
func (c *Client) Connect(ctx context.Context, connectData string) error {
	c.Disconnect()

	header := http.Header{}
	header.Set(HeaderConnData, connectData)

	ws, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		err = fmt.Errorf("dial %s: %w", c.url, err)
		c.fire(transport.EventConnectError, err.Error(), nil)
		return err
	}

	l := newLink(ws)
	l.superseded = func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.link != nil && c.link != l
	}
	l.resume()

	c.mu.Lock()
	c.link = l
	c.mu.Unlock()

	c.fire(transport.EventConnect, "", nil)
	go l.run(c.endpoint)
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l != nil {
		l.close("io client disconnect")
	}
	return nil
}

func (c *Client) Emit(event, data string, ack transport.AckFunc, flags model.EmitFlags) error {
	c.mu.RLock()
	l := c.link
	c.mu.RUnlock()

	if l == nil {
		if flags.Volatile {
			return nil
		}
		return transport.ErrNotConnected
	}
	return l.emit(event, data, ack, flags)
}
