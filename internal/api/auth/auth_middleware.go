package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-seoul-quest-api/config"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/api"
	"github.com/FACorreiaa/go-seoul-quest-api/internal/types"
)

type contextKey string

const UserIDKey contextKey = "userID"

// Authenticate is middleware to validate JWT access tokens and put the
// caller's user id into the request context.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) == 0 {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// exactly "Bearer <token>", scheme case-insensitive
			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}
			tokenString := headerParts[1]

			claims := &types.Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				// HMAC only; rejects alg=none and RS/ES key confusion
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secretKey, nil
			})

			if err != nil {
				l.WarnContext(ctx, "Token parsing/validation failed", slog.Any("error", err))
				errMsg := "Invalid or expired token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					errMsg = "Token has expired"
				} else if errors.Is(err, jwt.ErrTokenMalformed) {
					errMsg = "Malformed token"
				} else if errors.Is(err, jwt.ErrSignatureInvalid) {
					errMsg = "Invalid token signature"
				}
				api.ErrorResponse(w, r, http.StatusUnauthorized, errMsg)
				return
			}

			if !token.Valid {
				l.WarnContext(ctx, "Token marked as invalid")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			// jwt/v5 accepts tokens without exp, so require it here
			if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
				l.WarnContext(ctx, "Token has no usable expiration claim")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Token has expired")
				return
			}
			// issuer and audience are only enforced when configured
			if jwtCfg.Issuer != "" && claims.Issuer != jwtCfg.Issuer {
				l.WarnContext(ctx, "Token issuer mismatch", slog.String("expected", jwtCfg.Issuer), slog.String("actual", claims.Issuer))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
			if !api.VerifyAudience(claims.Audience, jwtCfg.Audience) {
				l.WarnContext(ctx, "Token audience mismatch", slog.String("expected", jwtCfg.Audience), slog.Any("actual", claims.Audience))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token audience")
				return
			}

			// Supabase-style tokens only carry the user id in "sub".
			userID := claims.UserID
			if userID == "" {
				userID = claims.Subject
			}
			if userID == "" {
				l.WarnContext(ctx, "Token carries no user id")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token subject")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, userID)
			l.DebugContext(ctx, "Authentication successful", slog.String("userID", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// WithUserID returns a copy of ctx carrying userID, as Authenticate would.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
