// Package rpcerr defines the small, shared error vocabulary used across
// the connection engine, the interface binding layer, and the dispatch
// middleware chain, kept in its own package to avoid an import cycle
// between those three.
package rpcerr

import (
	"errors"
	"fmt"
)

// HRESULT is a 32-bit error code compatible with the host OS convention
// the wire's ResponseError payload carries.
type HRESULT uint32

// Well-known codes. Values follow the Windows HRESULT convention the
// original design used; any 32-bit space would do, but these are
// recognizable and collision-free with success codes (high bit set).
const (
	SOK        HRESULT = 0x00000000
	ENotImpl   HRESULT = 0x80004001
	EAbort     HRESULT = 0x80004004
	EFail      HRESULT = 0x80004005
	ECancelled HRESULT = 0x800704C7
)

func (h HRESULT) String() string {
	switch h {
	case SOK:
		return "S_OK"
	case ENotImpl:
		return "E_NOTIMPL"
	case EAbort:
		return "E_ABORT"
	case EFail:
		return "E_FAIL"
	case ECancelled:
		return "E_CANCELLED"
	default:
		return fmt.Sprintf("HRESULT(%#08x)", uint32(h))
	}
}

// Phase classifies where an engine-reported error was captured.
type Phase int

const (
	PhaseSend Phase = iota
	PhaseReceive
	PhaseStop
)

func (p Phase) String() string {
	switch p {
	case PhaseSend:
		return "Send"
	case PhaseReceive:
		return "Receive"
	case PhaseStop:
		return "Stop"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// RemoteError is how a client call resolves when the server responded
// with a ResponseError message.
type RemoteError struct {
	Code HRESULT
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpcerr: remote error %s", e.Code)
}

// CodedError lets a server method implementation, or a transport, report
// a specific HRESULT instead of the generic E_FAIL fallback.
type CodedError interface {
	error
	HRESULT() HRESULT
}

type codedError struct {
	code HRESULT
	msg  string
}

func (e *codedError) Error() string    { return e.msg }
func (e *codedError) HRESULT() HRESULT { return e.code }

// WithCode wraps msg in an error whose HRESULT() is code, so a server
// method can return a specific error code to its remote caller instead of
// falling back to E_FAIL.
func WithCode(code HRESULT, msg string) error {
	return &codedError{code: code, msg: msg}
}

// Sentinel local-submission errors (spec.md §7 "Local submission errors").
var (
	// ErrNotRunning is returned by a client call submitted on a
	// connection that has not been started, or has already stopped.
	ErrNotRunning = errors.New("rpcerr: connection is not running")
	// ErrCancelled is returned by a client call whose connection was
	// cancelled (transport failure or explicit Stop) before or while the
	// call was outstanding.
	ErrCancelled = errors.New("rpcerr: connection cancelled")
	// ErrNotImplemented is returned by the server dispatcher when a
	// request names a MethodID absent from the interface description.
	ErrNotImplemented = errors.New("rpcerr: method not implemented")
)

// CodeOf extracts the HRESULT a client call should resolve with for a
// dispatch-time error, following spec.md §7: a CodedError keeps its code,
// ErrNotImplemented maps to E_NOTIMPL, and anything else is E_FAIL.
func CodeOf(err error) HRESULT {
	if err == nil {
		return SOK
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.HRESULT()
	}
	if errors.Is(err, ErrNotImplemented) {
		return ENotImpl
	}
	return EFail
}
