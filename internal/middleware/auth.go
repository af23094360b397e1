package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lattice-agent/pkg/apierror"

	"github.com/golang-jwt/jwt/v5"
)

// AuthorityKey is the context key holding the verified authority claims.
const AuthorityKey contextKey = "authority_claims"

// AuthorityClaims are the JWT claims the remote authority sends.
type AuthorityClaims struct {
	jwt.RegisteredClaims
	// RequesterID identifies the group or operator asking for a token.
	RequesterID string `json:"requester_id"`
}

// AuthorityConfig holds configuration for the authority middleware.
type AuthorityConfig struct {
	Secret string
	Issuer string
	Now    func() time.Time
}

// AuthorityValidator verifies HS256 authority tokens.
type AuthorityValidator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAuthorityValidator creates a validator. It returns nil when no secret
// is configured.
func NewAuthorityValidator(cfg AuthorityConfig) *AuthorityValidator {
	if cfg.Secret == "" {
		return nil
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthorityValidator{secret: []byte(cfg.Secret), issuer: cfg.Issuer, now: cfg.Now}
}

// Validate parses and verifies tokenStr.
func (v *AuthorityValidator) Validate(tokenStr string) (*AuthorityClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &AuthorityClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// NewAuthorityAuth creates middleware requiring a valid authority JWT in the
// Authorization header. A nil validator rejects every request.
func NewAuthorityAuth(v *AuthorityValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeError(w, apierror.Unauthorized("Authority authentication is not configured"))
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, apierror.Unauthorized("Authentication required. Use a Bearer token."))
				return
			}

			claims, err := v.Validate(strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), AuthorityKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetAuthority retrieves the verified authority claims from context.
func GetAuthority(ctx context.Context) *AuthorityClaims {
	if c, ok := ctx.Value(AuthorityKey).(*AuthorityClaims); ok {
		return c
	}
	return nil
}
