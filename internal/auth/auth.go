package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"signquiz-service/internal/domain"
)

type principalKey struct{}

// Authenticator issues and validates HS256 tokens whose subject is the player's user ID.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Principal returns the user ID carried by a valid token.
func (a *Authenticator) Principal(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Middleware resolves the bearer token, or the token query parameter used by
// browser websocket clients, and stores the principal in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := tokenFromRequest(r)
		if !ok {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		userID, err := a.Principal(raw)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), userID)))
	})
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// WithPrincipal stores userID in ctx.
func WithPrincipal(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, principalKey{}, userID)
}

// PrincipalFrom returns the authenticated user ID stored by Middleware.
func PrincipalFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(principalKey{}).(string)
	return userID, ok && userID != ""
}
