package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type callerIDKey struct{}

// callerFromContext returns the authenticated caller id stored in ctx, or "".
func callerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(callerIDKey{}).(string)
	return v
}

// jwtClaims is the JWT payload. The caller id travels in the subject claim.
type jwtClaims struct {
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token identifying callerID, valid for ttl.
func SignToken(secret, callerID string, ttl time.Duration) (string, error) {
	if callerID == "" {
		return "", errors.New("caller id is required")
	}
	now := time.Now()
	claims := &jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   callerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// RequireAuth is chi middleware that validates the bearer token (or the auth_token
// cookie) and injects the caller id into the request context. Returns 401 if the
// token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		if m := metaFromContext(r.Context()); m != nil {
			m.callerID = claims.Subject
		}
		ctx := context.WithValue(r.Context(), callerIDKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}
