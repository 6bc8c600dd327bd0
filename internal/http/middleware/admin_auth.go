package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

// AdminAuth gates administrative endpoints. Two credentials are accepted:
// the shared-secret X-Admin-Key header, or an HMAC-signed bearer JWT. A
// failed credential is a terminal rejection; no pipeline work starts.
func AdminAuth(apiKey, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" && jwtSecret == "" {
				http.Error(w, "admin auth disabled", http.StatusUnauthorized)
				return
			}

			if apiKey != "" {
				if key := r.Header.Get("X-Admin-Key"); key != "" {
					if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
						next.ServeHTTP(w, r)
						return
					}
					http.Error(w, "invalid admin key", http.StatusUnauthorized)
					return
				}
			}

			if jwtSecret == "" {
				http.Error(w, "missing admin key", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), adminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminClaimsFromContext returns admin JWT claims if present.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}
