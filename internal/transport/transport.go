// Package transport abstracts the event channel the sealed protocol rides
// on. Drivers register client and server factories by name.
package transport

import (
	"context"
	"errors"

	"sealed_socket/internal/cryptographic/registry"
	"sealed_socket/internal/model"
)

// Reserved events are raised by the transport itself and carry no sealed
// payload.
const (
	EventConnect        = "connect"
	EventConnectError   = "connect_error"
	EventDisconnect     = "disconnect"
	EventDisconnecting  = "disconnecting"
	EventNewListener    = "newListener"
	EventRemoveListener = "removeListener"
)

var reserved = map[string]struct{}{
	EventConnect:        {},
	EventConnectError:   {},
	EventDisconnect:     {},
	EventDisconnecting:  {},
	EventNewListener:    {},
	EventRemoveListener: {},
}

func IsReserved(event string) bool {
	_, ok := reserved[event]
	return ok
}

var (
	ErrAckTimeout    = errors.New("transport: ack timed out")
	ErrNotConnected  = errors.New("transport: not connected")
	ErrClosed        = errors.New("transport: connection closed")
	ErrReservedEvent = errors.New("transport: reserved event")
)

type (
	// Responder answers an event that requested an ack. Only the first
	// call is delivered.
	Responder func(data string) error

	// Handler receives an event payload. reply is nil when the sender did
	// not ask for an ack.
	Handler func(data string, reply Responder)

	// AckFunc receives the peer's ack payload, or a transport error such
	// as ErrAckTimeout.
	AckFunc func(data string, err error)

	Endpoint interface {
		Emit(event, data string, ack AckFunc, flags model.EmitFlags) error
		On(event string, h Handler)
		// Off removes every handler for event, or all handlers when event
		// is empty.
		Off(event string)
	}

	ClientConn interface {
		Endpoint
		Connect(ctx context.Context, connectData string) error
		Disconnect() error
	}

	Socket interface {
		Endpoint
		// ConnectData is the opaque payload the client attached to its
		// connection request.
		ConnectData() string
		Address() string
		Disconnect() error
		Done() <-chan struct{}
		// Resume starts delivering inbound events. Events arriving before
		// Resume are queued.
		Resume()
	}

	Listener interface {
		OnConnection(func(Socket))
		// Listen serves until ctx is cancelled or Close is called.
		Listen(ctx context.Context) error
		Close() error
	}

	ClientOptions struct {
		Address string
		Path    string
	}

	ServerOptions struct {
		Addr string
		Path string
	}

	ClientFactory func(opts ClientOptions) (ClientConn, error)
	ServerFactory func(opts ServerOptions) (Listener, error)
)

var (
	clients = registry.New[ClientFactory]("transport client")
	servers = registry.New[ServerFactory]("transport server")
)

func RegisterClient(name string, f ClientFactory) {
	clients.Register(name, f)
}

func RegisterServer(name string, f ServerFactory) {
	servers.Register(name, f)
}

func IsValid(name string) bool {
	return clients.IsValid(name) && servers.IsValid(name)
}

// Drivers lists the drivers available on both sides.
func Drivers() []string {
	var names []string
	for _, name := range clients.Names() {
		if servers.IsValid(name) {
			names = append(names, name)
		}
	}
	return names
}

func NewClient(driver string, opts ClientOptions) (ClientConn, error) {
	f, err := clients.Lookup(driver)
	if err != nil {
		return nil, err
	}
	return f(opts)
}

func NewServer(driver string, opts ServerOptions) (Listener, error) {
	f, err := servers.Lookup(driver)
	if err != nil {
		return nil, err
	}
	return f(opts)
}
