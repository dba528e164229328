// File: internal/transport/errors.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// ErrorKind buckets transport failures so callers can decide whether to
// surface, recreate a session, or give up.
type ErrorKind string

const (
	// KindAuth covers rejected credentials or tokens.
	KindAuth ErrorKind = "auth"
	// KindDNS covers unresolvable endpoints.
	KindDNS ErrorKind = "dns"
	// KindTimeout covers dials or operations that ran out of time.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimit covers provider-side connection throttling.
	KindRateLimit ErrorKind = "ratelimit"
	// KindPermission covers targets the backend account is not authorized
	// for; the offending domain is named in the message.
	KindPermission ErrorKind = "permission"
	// KindNavigation covers page-load failures.
	KindNavigation ErrorKind = "navigation"
	// KindSession covers missing or irrecoverable sessions. Distinct from
	// interaction failures so callers can decide to recreate.
	KindSession ErrorKind = "session"
	// KindInteraction covers selector/click/match failures on a live page.
	KindInteraction ErrorKind = "interaction"
)

// Error is the typed failure every transport (and the registry) surfaces.
type Error struct {
	Kind    ErrorKind
	Backend schemas.BackendKind
	// Hint is a backend-specific pointer at the likely cause.
	Hint string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Backend != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Backend)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Hint)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed transport error.
func NewError(kind ErrorKind, backend schemas.BackendKind, hint string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Hint: hint, Err: err}
}

// IsKind reports whether err carries the given transport error kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

// ClassifyConnect maps a raw connect failure onto the error taxonomy with a
// backend-appropriate hint. Connection failures are never retried here.
func ClassifyConnect(backend schemas.BackendKind, err error) *Error {
	if err == nil {
		return nil
	}

	var te *Error
	if errors.As(err, &te) {
		return te
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewError(KindDNS, backend, "endpoint hostname did not resolve; check the endpoint URL", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, backend, "connection timed out; consider raising the connect timeout", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		return NewError(KindAuth, backend, authHint(backend), err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many"):
		return NewError(KindRateLimit, backend, "provider is throttling new connections; slow down session creation", err)
	case strings.Contains(msg, "no such host"):
		return NewError(KindDNS, backend, "endpoint hostname did not resolve; check the endpoint URL", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return NewError(KindTimeout, backend, "connection timed out; consider raising the connect timeout", err)
	}

	return NewError(KindNavigation, backend, "", err)
}

// authHint points at the credential field most likely at fault per backend.
func authHint(backend schemas.BackendKind) string {
	switch backend {
	case schemas.BackendBrightData:
		return "check the websocket endpoint credentials and zone password"
	case schemas.BackendBrowserless:
		return "check the API token"
	default:
		return "check the backend credentials"
	}
}
