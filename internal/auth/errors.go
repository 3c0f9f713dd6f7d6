package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")
	ErrForbidden     = errors.New("auth: forbidden")
	ErrAlreadyExists = errors.New("auth: already exists")

	// ErrDuplicateIdentity rejects a registration whose email is taken.
	ErrDuplicateIdentity = errors.New("auth: identity already registered")
	// ErrInvalidCredentials covers both unknown identity and wrong secret.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrRoleCreation wraps role store failures on the role cache slow path.
	ErrRoleCreation = errors.New("auth: role creation failed")
)

// Token errors. Every one of them maps to "unauthenticated" at the edge.
var (
	ErrMalformedToken        = errors.New("auth: malformed token")
	ErrSignatureMismatch     = errors.New("auth: token signature mismatch")
	ErrTokenExpired          = errors.New("auth: token expired")
	ErrWrongTokenKind        = errors.New("auth: wrong token kind")
	ErrSigningKeyUnavailable = errors.New("auth: signing key unavailable")
)

// IsTokenError reports whether err is one of the token validation failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrWrongTokenKind)
}
