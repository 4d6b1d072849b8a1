package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signquiz-service/internal/domain"
)

func TestIssueAndResolvePrincipal(t *testing.T) {
	a := NewAuthenticator("secret")
	token, err := a.Issue("user-1", time.Hour)
	require.NoError(t, err)

	userID, err := a.Principal(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestPrincipalRejectsExpiredToken(t *testing.T) {
	a := NewAuthenticator("secret")
	issued := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	token, err := a.Issue("user-1", time.Minute)
	require.NoError(t, err)

	a.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = a.Principal(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPrincipalRejectsForeignSecret(t *testing.T) {
	token, err := NewAuthenticator("other").Issue("user-1", time.Hour)
	require.NoError(t, err)

	_, err = NewAuthenticator("secret").Principal(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPrincipalRejectsMissingSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewAuthenticator("secret").Principal(raw)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator("secret")
	token, err := a.Issue("user-1", time.Hour)
	require.NoError(t, err)

	var seen string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
		user   string
	}{
		{name: "bearer header", header: "Bearer " + token, status: http.StatusOK, user: "user-1"},
		{name: "query token", query: "?token=" + token, status: http.StatusOK, user: "user-1"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/coins"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.user, seen)
		})
	}
}
