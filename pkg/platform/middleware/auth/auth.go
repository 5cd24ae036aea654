// Package auth authenticates the acting operator. Provisioning endpoints are
// called by signed-in back-office users; the JWT subject becomes the actor ID
// recorded on role assignments and audit events.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/platform/httputil"
	"caretrip/pkg/requestcontext"
)

// Claims are the token claims the provisioning API relies on.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Validator verifies bearer tokens issued by the identity platform.
type Validator struct {
	signingKey []byte
	logger     *slog.Logger
}

func NewValidator(signingKey []byte, logger *slog.Logger) *Validator {
	return &Validator{signingKey: signingKey, logger: logger}
}

// ValidateToken parses and verifies a token, returning its claims.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// RequireActor rejects requests without a valid bearer token and stores the
// token subject as the actor ID. The email claim wins as the actor label
// when present; audit trails read better with addresses than with UUIDs.
func RequireActor(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
				return
			}

			claims, err := v.ValidateToken(token)
			if err != nil {
				v.logger.WarnContext(r.Context(), "rejected bearer token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			actor := claims.Subject
			if claims.Email != "" {
				actor = claims.Email
			}
			ctx := requestcontext.WithActorID(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
