package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sathicare/booking-core/internal/identity"
)

func signedToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := PrincipalClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func serveAuth(secret, header string) (*httptest.ResponseRecorder, *identity.Principal) {
	req := httptest.NewRequest(http.MethodGet, "/api/appointments/mine", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	var seen *identity.Principal
	Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := identity.PrincipalFromContext(r.Context()); ok {
			seen = &p
		}
	})).ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthenticateRejects(t *testing.T) {
	id := uuid.NewString()
	tests := []struct {
		name   string
		secret string
		header string
		status int
	}{
		{"disabled", "", "Bearer x", http.StatusUnauthorized},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"wrong scheme", "secret", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "secret", "Bearer " + signedToken(t, "wrong", id, "client"), http.StatusUnauthorized},
		{"bad subject", "secret", "Bearer " + signedToken(t, "secret", "not-a-uuid", "client"), http.StatusUnauthorized},
		{"unknown role", "secret", "Bearer " + signedToken(t, "secret", id, "moderator"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, seen := serveAuth(tt.secret, tt.header)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if seen != nil {
				t.Fatal("handler should not run")
			}
		})
	}
}

func TestAuthenticateStoresPrincipal(t *testing.T) {
	id := uuid.New()
	rec, seen := serveAuth("secret", "Bearer "+signedToken(t, "secret", id.String(), "user"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil || seen.ID != id || seen.Role != identity.RoleClient {
		t.Fatalf("unexpected principal %+v", seen)
	}
}
