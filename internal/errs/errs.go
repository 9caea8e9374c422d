// Package errs defines the error taxonomy shared by the codec, the handshake
// and the messaging layers. Callers classify errors with errors.Is against
// ErrConfig, ErrDecode, ErrCrypto and ErrAuth.
package errs

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindConfig Kind = iota + 1
	KindDecode
	KindCrypto
	KindAuth
)

var (
	ErrConfig = errors.New("config error")
	ErrDecode = errors.New("decode error")
	ErrCrypto = errors.New("crypto error")
	ErrAuth   = errors.New("auth error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindDecode:
		return ErrDecode
	case KindCrypto:
		return ErrCrypto
	case KindAuth:
		return ErrAuth
	default:
		return nil
	}
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so a wrapped cause never
// changes how the error is classified.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func Config(format string, args ...any) error {
	return &Error{Kind: KindConfig, Msg: fmt.Sprintf(format, args...)}
}

func Decode(format string, args ...any) error {
	return &Error{Kind: KindDecode, Msg: fmt.Sprintf(format, args...)}
}

func Auth(format string, args ...any) error {
	return &Error{Kind: KindAuth, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and context to a cause. A nil cause yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
