package domain

import "errors"

// Error taxonomy shared by the websocket and REST surfaces.
var (
	// ErrAuthentication means no verified identity. Unrecoverable for the connection.
	ErrAuthentication = errors.New("authentication required")
	// ErrAuthorization means a valid identity that is not a participant.
	ErrAuthorization = errors.New("not a participant of this chat")
	// ErrInvalidState means the invitation is already resolved or expired.
	ErrInvalidState = errors.New("invitation is no longer pending")
	// ErrTransientIO wraps store or network failures.
	ErrTransientIO = errors.New("temporarily unavailable")

	ErrValidation  = errors.New("invalid request")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited")
)

// Error codes carried by error events and REST responses.
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodeUnavailable     = "UNAVAILABLE"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeSessionReplaced = "SESSION_REPLACED"
	ErrCodeSessionEnded    = "SESSION_ENDED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// ErrorCode maps an error onto its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return ErrCodeUnauthenticated
	case errors.Is(err, ErrAuthorization):
		return ErrCodeForbidden
	case errors.Is(err, ErrInvalidState):
		return ErrCodeInvalidState
	case errors.Is(err, ErrTransientIO):
		return ErrCodeUnavailable
	case errors.Is(err, ErrValidation):
		return ErrCodeBadRequest
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrConflict):
		return ErrCodeConflict
	case errors.Is(err, ErrRateLimited):
		return ErrCodeRateLimited
	default:
		return ErrCodeInternalError
	}
}
