package auth

import "errors"

var (
	// ErrMissingFields is a registration validation failure; raised before
	// any hashing or storage happens.
	ErrMissingFields = errors.New("auth: missing required fields")

	// ErrUserNotFound and ErrInvalidCredentials are distinct internally but
	// must surface as one generic rejection at the transport boundary so
	// callers cannot probe which accounts exist.
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenNotFound means the presented token has no stored record.
	ErrTokenNotFound = errors.New("auth: token not found")

	// ErrTokenExpired means the token's recorded expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrMalformedRecord means a token record is missing or carries an
	// unparsable expiry; should not occur under normal writes.
	ErrMalformedRecord = errors.New("auth: malformed token record")
)

// IsAuthFailure reports whether err is one of the two login rejections that
// must stay externally indistinguishable.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidCredentials)
}
