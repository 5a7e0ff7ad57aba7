package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sathicare/booking-core/internal/identity"
)

// PrincipalClaims is the token shape issued by the identity service.
type PrincipalClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate verifies an HMAC-signed bearer token and stores the caller's
// principal in the request context. The subject must be the caller's id.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := PrincipalClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				http.Error(w, "invalid token subject", http.StatusUnauthorized)
				return
			}
			role, ok := identity.ParseRole(claims.Role)
			if !ok {
				http.Error(w, "unknown role", http.StatusForbidden)
				return
			}
			ctx := identity.WithPrincipal(r.Context(), identity.Principal{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
