package server

import (
	"sync"
	"time"

	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/handshake"
	"sealed_socket/internal/protocol/keys"
	"sealed_socket/internal/protocol/messaging"
	"sealed_socket/internal/transport"
)

type (
	// Socket is one authenticated client. Replies are sealed to the
	// client's current public key with the most recently received headers.
	Socket struct {
		raw transport.Socket
		ch  *messaging.Channel

		mu      sync.RWMutex
		state   handshake.State
		auth    model.AuthContext
		headers model.Headers
	}
)

func newSocket(raw transport.Socket, static *keys.Static) *Socket {
	s := &Socket{raw: raw, state: handshake.Connecting}
	s.ch = messaging.NewChannel(raw, messaging.Options{
		Target:     s.target,
		PrivateKey: static.PrivateKey,
		Opened:     s.setHeaders,
	})
	return s
}

func (s *Socket) establish(auth model.AuthContext, headers model.Headers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = handshake.Verifying
	s.auth = auth
	s.headers = headers.Clone()
}

// settle records the final outcome. A socket that went through
// verification keeps its own auth, including a peer key set by the
// verifier.
func (s *Socket) settle(out handshake.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != handshake.Verifying || out.State != handshake.Established {
		s.auth = out.Auth
	}
	s.state = out.State
	s.headers = out.Headers.Clone()
}

func (s *Socket) setHeaders(h model.Headers) {
	h = h.Clone()
	s.mu.Lock()
	s.headers = h
	s.mu.Unlock()
}

func (s *Socket) target() (model.EncryptionConfig, model.CompressionConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.EncryptionFor(s.headers.Encryption, s.auth.PeerPublicKey),
		model.CompressionFor(s.headers.Compression)
}

func (s *Socket) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.RemoteID
}

func (s *Socket) Extra() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.Extra
}

func (s *Socket) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.Token
}

func (s *Socket) Auth() model.AuthContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// Headers returns the negotiated headers replies are sealed with.
func (s *Socket) Headers() model.Headers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headers.Clone()
}

func (s *Socket) State() handshake.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Socket) Address() string {
	return s.raw.Address()
}

// SetPeerPublicKey rotates the key the next emit is sealed to.
func (s *Socket) SetPeerPublicKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth.PeerPublicKey = key
}

func (s *Socket) Emit(event, data string, ack messaging.AckFunc) error {
	return s.ch.Emit(event, data, ack, model.EmitFlags{})
}

func (s *Socket) Timeout(d time.Duration) messaging.Emitter {
	return s.ch.Timeout(d)
}

func (s *Socket) Volatile() messaging.Emitter {
	return s.ch.Volatile()
}

func (s *Socket) On(event string, h messaging.Handler) {
	s.ch.On(event, h)
}

func (s *Socket) Off(event string) {
	s.ch.Off(event)
}

func (s *Socket) Disconnect() error {
	return s.raw.Disconnect()
}
