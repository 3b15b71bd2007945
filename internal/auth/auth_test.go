package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, c claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() claims {
	return claims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testSecret, "authenticated")

	t.Run("valid token", func(t *testing.T) {
		user, err := v.Verify(signToken(t, testSecret, validClaims()))
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, "user@example.com", user.Email)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.Verify(signToken(t, "other", validClaims()))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		c := validClaims()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.Verify(signToken(t, testSecret, c))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := validClaims()
		c.Audience = jwt.ClaimStrings{"anon"}
		_, err := v.Verify(signToken(t, testSecret, c))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("missing subject", func(t *testing.T) {
		c := validClaims()
		c.Subject = ""
		_, err := v.Verify(signToken(t, testSecret, c))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewVerifier(testSecret, "authenticated")

	r := gin.New()
	r.GET("/me", Middleware(v), func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, user.ID)
	})

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
		}, http.StatusOK},
		{"session cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: signToken(t, testSecret, validClaims())})
		}, http.StatusOK},
		{"non bearer scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		}, http.StatusUnauthorized},
		{"garbage token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.jwt")
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "user-1", w.Body.String())
			} else {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
			}
		})
	}
}
