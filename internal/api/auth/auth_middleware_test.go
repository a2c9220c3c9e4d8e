package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-seoul-quest-api/config"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

var testJWT = config.JWTConfig{SecretKey: "test-secret", Issuer: "seoul-quest"}

func signToken(t *testing.T, claims types.Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID string) types.Claims {
	return types.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "seoul-quest",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Authenticate(logger, testJWT)(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + signToken(t, validClaims("u-1"), "other"), wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + signToken(t, validClaims("u-1"), "test-secret"), wantStatus: http.StatusOK, wantUserID: "u-1"},
		{
			name: "subject fallback",
			header: "Bearer " + signToken(t, types.Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u-sub",
				Issuer:    "seoul-quest",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}}, "test-secret"),
			wantStatus: http.StatusOK,
			wantUserID: "u-sub",
		},
		{
			name: "role claim does not affect access",
			header: "Bearer " + signToken(t, types.Claims{UserID: "u-2", Role: "authenticated", RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "seoul-quest",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}}, "test-secret"),
			wantStatus: http.StatusOK,
			wantUserID: "u-2",
		},
		{
			name:       "missing expiry",
			header:     "Bearer " + signToken(t, types.Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "seoul-quest"}}, "test-secret"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			header: "Bearer " + signToken(t, types.Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}}, "test-secret"),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodPost, "/ai_station/route-recommend", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUserID, gotUserID)
		})
	}
}

func TestAuthenticate_Audience(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.JWTConfig{SecretKey: "test-secret", Issuer: "seoul-quest", Audience: "seoul-quest-app"}
	handler := Authenticate(logger, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(aud ...string) int {
		claims := validClaims("u-1")
		claims.Audience = aud
		req := httptest.NewRequest(http.MethodPost, "/ai_station/route-recommend", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, claims, "test-secret"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve("other", "seoul-quest-app"))
	assert.Equal(t, http.StatusUnauthorized, serve("other"))
	assert.Equal(t, http.StatusUnauthorized, serve())
}

func TestAuthenticate_PanicsWithoutSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Panics(t, func() {
		Authenticate(logger, config.JWTConfig{})
	})
}
