package handshake

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"sealed_socket/internal/errs"
	"sealed_socket/internal/model"
	"sealed_socket/internal/protocol/envelope"
	"sealed_socket/internal/protocol/keys"
	"sealed_socket/internal/utils/log"
	"sealed_socket/internal/utils/random"
)

const generatedIDLength = 16

var ErrAbandoned = errors.New("handshake abandoned: connection closed")

type (
	// Peer is the raw connection under authentication.
	Peer interface {
		ConnectData() string
		Address() string
		Disconnect() error
		// Done is closed when the connection ends.
		Done() <-chan struct{}
	}

	// Verifier decides whether an identified peer may stay connected. It
	// may block; it is abandoned if the connection closes first.
	Verifier func(ctx context.Context, auth model.AuthContext, headers model.Headers) (bool, error)

	Server struct {
		Keys                   *keys.Static
		RefuseUnsignedID       bool
		OnFailedAuthentication Policy
	}

	Outcome struct {
		State   State
		Auth    model.AuthContext
		Headers model.Headers
		Err     error
	}

	hello struct {
		ID    any    `json:"id"`
		Token string `json:"token"`
		Extra string `json:"extra"`
		Key   string `json:"key"`
	}
)

// Authenticate runs Connecting -> HelloReceived -> Verifying -> Established
// for one socket. Failures end in AuthFailed or Rejected and apply the
// failure policy. An Abandoned outcome must not be reported to the
// application.
func (s *Server) Authenticate(ctx context.Context, peer Peer, verify Verifier) Outcome {
	opened, err := envelope.Open(peer.ConnectData(), s.Keys.PrivateKey())
	if err != nil {
		return s.fail(peer, Outcome{State: AuthFailed}, errs.Wrap(errs.KindAuth, err, "open hello"))
	}

	out := Outcome{State: HelloReceived, Headers: opened.Headers}

	var h hello
	if err := json.Unmarshal([]byte(opened.Data), &h); err != nil {
		out.State = AuthFailed
		return s.fail(peer, out, errs.Wrap(errs.KindAuth, err, "parse hello"))
	}

	id, _ := h.ID.(string)
	if id == "" {
		if s.RefuseUnsignedID {
			out.State = AuthFailed
			return s.fail(peer, out, errs.Auth("did not get id from socket"))
		}
		id, err = random.String(generatedIDLength)
		if err != nil {
			out.State = AuthFailed
			return s.fail(peer, out, errs.Wrap(errs.KindAuth, err, "generate id"))
		}
	}

	if !opened.Headers.Encryption.Disabled && h.Key == "" {
		out.State = AuthFailed
		return s.fail(peer, out, errs.Auth("did not get public key from socket"))
	}

	out.Auth = model.AuthContext{
		RemoteID:      id,
		Token:         h.Token,
		Extra:         h.Extra,
		PeerPublicKey: h.Key,
	}
	out.State = Verifying

	if verify == nil {
		out.State = Established
		return out
	}

	type result struct {
		ok  bool
		err error
	}
	vctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		ok, err := verify(vctx, out.Auth, out.Headers.Clone())
		done <- result{ok, err}
	}()

	select {
	case r := <-done:
		if r.err != nil || !r.ok {
			out.State = Rejected
			if r.err != nil {
				return s.fail(peer, out, errs.Wrap(errs.KindAuth, r.err, "failed token authentication"))
			}
			return s.fail(peer, out, errs.Auth("failed token authentication"))
		}
	case <-peer.Done():
		log.Debug("handshake abandoned", zap.String("address", peer.Address()), zap.String("id", id))
		out.State = Abandoned
		out.Err = ErrAbandoned
		return out
	case <-ctx.Done():
		out.State = Abandoned
		out.Err = ctx.Err()
		if err := peer.Disconnect(); err != nil {
			log.Debug("disconnect after cancelled handshake", zap.Error(err))
		}
		return out
	}

	out.State = Established
	return out
}

func (s *Server) fail(peer Peer, out Outcome, err error) Outcome {
	out.Err = err

	log.Debug("authentication failed",
		zap.String("address", peer.Address()),
		zap.String("state", out.State.String()),
		zap.Error(err),
	)

	if s.OnFailedAuthentication != PolicyKeep {
		if derr := peer.Disconnect(); derr != nil {
			log.Debug("disconnect after failed authentication", zap.Error(derr))
		}
	}
	return out
}
