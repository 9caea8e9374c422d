// Package server accepts sealed socket connections, authenticates them
// and exposes each established client as a Socket.
package server

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"sealed_socket/internal/config"
	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/handshake"
	"sealed_socket/internal/protocol/keys"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/utils/log"
)

const bookkeepingTimeout = 5 * time.Second

type (
	// VerifyFunc decides whether an authenticated socket may stay. An
	// error counts as a rejection.
	VerifyFunc func(ctx context.Context, s *Socket) (bool, error)

	// ConnectionFunc sees every handshake outcome. err is nil only for
	// established sockets.
	ConnectionFunc func(s *Socket, err error)

	// AuditLog records handshake outcomes.
	AuditLog interface {
		Record(ctx context.Context, attempt *model.AuthAttempt) (primitive.ObjectID, error)
	}

	Option func(*Server)

	Server struct {
		cfg      config.Server
		listener transport.Listener
		hs       *handshake.Server
		presence PresenceStore
		audit    AuditLog

		ctx    context.Context
		cancel context.CancelFunc

		mu        sync.RWMutex
		verify    VerifyFunc
		callbacks []ConnectionFunc
	}
)

func WithPresence(p PresenceStore) Option {
	return func(s *Server) {
		s.presence = p
	}
}

func WithAudit(a AuditLog) Option {
	return func(s *Server) {
		s.audit = a
	}
}

// WithListener replaces the listener built from the configured transport.
func WithListener(l transport.Listener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

func New(cfg config.Server, opts ...Option) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	static, err := keys.NewStatic(cfg.Key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg: cfg,
		hs: &handshake.Server{
			Keys:                   static,
			RefuseUnsignedID:       cfg.RefuseUnsignedID,
			OnFailedAuthentication: handshake.Policy(cfg.OnFailedAuthentication),
		},
		presence: NewMemoryPresence(),
		ctx:      ctx,
		cancel:   cancel,
		verify:   acceptAll,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.listener == nil {
		s.listener, err = transport.NewServer(cfg.Transport.Driver, transport.ServerOptions{
			Addr: cfg.Addr(),
			Path: cfg.Transport.Path,
		})
		if err != nil {
			cancel()
			return nil, errs.Wrap(errs.KindConfig, err, "transport")
		}
	}

	s.listener.OnConnection(s.handleConnection)
	return s, nil
}

func acceptAll(context.Context, *Socket) (bool, error) {
	return true, nil
}

// SetConnectVerification replaces the verifier; nil accepts every socket.
func (s *Server) SetConnectVerification(fn VerifyFunc) {
	if fn == nil {
		fn = acceptAll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verify = fn
}

func (s *Server) OnConnection(fn ConnectionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Listen serves until ctx is cancelled or Close is called.
func (s *Server) Listen(ctx context.Context) error {
	log.Info("server starting",
		zap.String("addr", s.cfg.Addr()),
		zap.String("transport", s.cfg.Transport.Driver),
		zap.Bool("refuse_unsigned_id", s.cfg.RefuseUnsignedID),
		zap.String("on_failed_authentication", s.cfg.OnFailedAuthentication),
	)
	return s.listener.Listen(ctx)
}

// Close stops the listener and abandons pending handshakes.
func (s *Server) Close() error {
	s.cancel()
	return s.listener.Close()
}

// Online reports the address a remote id is connected from.
func (s *Server) Online(ctx context.Context, id string) (string, bool, error) {
	return s.presence.Get(ctx, id)
}

func (s *Server) handleConnection(raw transport.Socket) {
	s.mu.RLock()
	verify := s.verify
	callbacks := append([]ConnectionFunc(nil), s.callbacks...)
	s.mu.RUnlock()

	sock := newSocket(raw, s.hs.Keys)

	out := s.hs.Authenticate(s.ctx, raw, func(ctx context.Context, auth model.AuthContext, headers model.Headers) (bool, error) {
		sock.establish(auth, headers)
		return verify(ctx, sock)
	})
	sock.settle(out)
	s.record(raw, out)

	if out.State == handshake.Abandoned {
		return
	}

	if out.State == handshake.Established {
		s.track(sock)
		log.Info("socket established", zap.String("id", out.Auth.RemoteID), zap.String("address", raw.Address()))
	} else {
		log.Warn("socket failed authentication",
			zap.String("address", raw.Address()),
			zap.String("state", out.State.String()),
			zap.Error(out.Err),
		)
	}

	for _, cb := range callbacks {
		cb(sock, out.Err)
	}
	raw.Resume()
}

func (s *Server) track(sock *Socket) {
	id := sock.ID()
	addr := sock.Address()

	ctx, cancel := context.WithTimeout(s.ctx, bookkeepingTimeout)
	defer cancel()
	if err := s.presence.Set(ctx, id, addr); err != nil {
		log.Error("presence set failed", zap.String("id", id), zap.Error(err))
	}

	go func() {
		<-sock.raw.Done()

		ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
		defer cancel()
		if err := s.presence.Delete(ctx, id, addr); err != nil {
			log.Error("presence delete failed", zap.String("id", id), zap.Error(err))
		}
		log.Info("socket closed", zap.String("id", id))
	}()
}

func (s *Server) record(raw transport.Socket, out handshake.Outcome) {
	if s.audit == nil {
		return
	}

	attempt := &model.AuthAttempt{
		RemoteID:  out.Auth.RemoteID,
		Address:   raw.Address(),
		State:     out.State.String(),
		CreatedAt: time.Now().UTC(),
	}
	if out.Err != nil {
		attempt.Error = out.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if _, err := s.audit.Record(ctx, attempt); err != nil {
		log.Error("audit record failed", zap.Error(err))
	}
}
