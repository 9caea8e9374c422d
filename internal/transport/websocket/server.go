package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sealed_socket/internal/model"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/utils/log"
)

const shutdownTimeout = 5 * time.Second

type (
	Server struct {
		addr     string
		router   *mux.Router
		upgrader websocket.Upgrader

		mu        sync.Mutex
		callbacks []func(transport.Socket)
		sockets   map[*Socket]struct{}
		srv       *http.Server
		closed    bool
	}

	// Socket is the server side of one client connection.
	Socket struct {
		*endpoint
		link *link

		connectData string
		address     string
	}
)

func NewServer(opts transport.ServerOptions) (transport.Listener, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}

	s := &Server{
		addr: opts.Addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sockets: make(map[*Socket]struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc(path, s.handleSocket()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth()).Methods(http.MethodGet)
	s.router = r
	return s, nil
}

// Handler exposes the routes for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) OnConnection(cb func(transport.Socket)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

func (s *Server) Listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Close is
// called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return transport.ErrClosed
	}
	s.srv = srv
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	log.Info("transport listening", zap.String("driver", DriverName), zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.srv
	sockets := make([]*Socket, 0, len(s.sockets))
	for sock := range s.sockets {
		sockets = append(sockets, sock)
	}
	s.mu.Unlock()

	for _, sock := range sockets {
		sock.link.close("server shutting down")
	}

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) handleSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			http.Error(w, "server closed", http.StatusServiceUnavailable)
			return
		}

		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("upgrade failed", zap.Error(err))
			return
		}

		sock := &Socket{
			endpoint:    newEndpoint(),
			link:        newLink(ws),
			connectData: r.Header.Get(HeaderConnData),
			address:     r.RemoteAddr,
		}

		s.mu.Lock()
		s.sockets[sock] = struct{}{}
		callbacks := append([]func(transport.Socket){}, s.callbacks...)
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.sockets, sock)
			s.mu.Unlock()
		}()

		go func() {
			for _, cb := range callbacks {
				cb(sock)
			}
		}()

		sock.link.run(sock.endpoint)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		n := len(s.sockets)
		s.mu.Unlock()

		data, err := json.Marshal(map[string]any{"status": "ok", "sockets": n})
		if err != nil {
			http.Error(w, "health failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func (s *Socket) ConnectData() string { return s.connectData }

func (s *Socket) Address() string { return s.address }

func (s *Socket) Done() <-chan struct{} { return s.link.done }

func (s *Socket) Resume() { s.link.resume() }

func (s *Socket) Disconnect() error {
	s.link.close("io server disconnect")
	return nil
}

func (s *Socket) Emit(event, data string, ack transport.AckFunc, flags model.EmitFlags) error {
	return s.link.emit(event, data, ack, flags)
}
