package token

import "errors"

// Error is a token validation failure carrying a wire code and a
// human-readable reason.
type Error struct {
	Code   string
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

var (
	ErrMalformed     = &Error{Code: "MALFORMED", Reason: "token is malformed"}
	ErrBadSignature  = &Error{Code: "BAD_SIGNATURE", Reason: "token signature does not match"}
	ErrExpired       = &Error{Code: "EXPIRED", Reason: "token is not valid today"}
	ErrNoGrant       = &Error{Code: "NO_GRANT", Reason: "no active command token; apply one first"}
	ErrRevokedMisuse = &Error{Code: "REVOKED_MISUSE", Reason: "token was revoked after use by another player"}
)

// ErrNotConfigured is returned by issuance when gating is disabled or no
// signing secret is configured.
var ErrNotConfigured = errors.New("token issuance not configured")

// Code returns the wire code for a token error, or "" for other errors.
func Code(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
