package gallery

import (
	"errors"
	"net/http"

	"gallery/internal/auth"
	"gallery/internal/models"
)

// Kind classifies a service failure. Each kind maps to one HTTP status.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindMethodNotAllowed
	KindConflict
	KindStorageFailure
)

func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure whose Message is safe to show to the client. Err, when
// set, is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func storageFailure(msg string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Message: msg, Err: err}
}

// AsError extracts an *Error from err. Anything else is reported as an
// internal failure.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindStorageFailure, Message: "Internal server error", Err: err}
}

var (
	ErrUnauthenticated = newError(KindUnauthenticated, "Not authenticated")
	ErrForbidden       = newError(KindForbidden, "Admin access required")
)

func requireAuth(caller *auth.Identity) error {
	if caller == nil || caller.UserID == 0 {
		return ErrUnauthenticated
	}
	return nil
}

// RequireAdmin reports the error an admin-only operation would return for
// caller, so transports can refuse before reading a request body.
func (s *Service) RequireAdmin(caller *auth.Identity) error {
	return requireAdmin(caller)
}

func requireAdmin(caller *auth.Identity) error {
	if err := requireAuth(caller); err != nil {
		return err
	}
	if !caller.Role.Can(models.CapManage) {
		return ErrForbidden
	}
	return nil
}
