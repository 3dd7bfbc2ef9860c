package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chirino/askbox/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenFromHeader(t *testing.T) {
	require.Equal(t, "abc", TokenFromHeader("Bearer abc"))
	require.Equal(t, "abc", TokenFromHeader("bearer  abc "))
	require.Equal(t, "abc.def.ghi", TokenFromHeader("abc.def.ghi"))
	require.Equal(t, "", TokenFromHeader(""))
}

func TestResolve_SharedSecret(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "s3cret"
	r := NewTokenResolver(&cfg)

	token, err := SignToken("u-1", []byte("s3cret"), time.Minute)
	require.NoError(t, err)

	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "u-1", id.UserID)

	other, err := SignToken("u-1", []byte("other"), time.Minute)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), other)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolve_ExpiredToken(t *testing.T) {
	token, err := SignToken("u-1", []byte("k"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("k"))
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestResolve_TestingModeAcceptsRawUID(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	r := NewTokenResolver(&cfg)

	id, err := r.Resolve(context.Background(), "u-raw")
	require.NoError(t, err)
	require.Equal(t, "u-raw", id.UserID)
}

func TestResolve_ProdRejectsRawUID(t *testing.T) {
	cfg := config.DefaultConfig()
	r := NewTokenResolver(&cfg)

	_, err := r.Resolve(context.Background(), "u-raw")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = r.Resolve(context.Background(), " ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "k"
	r := gin.New()
	r.GET("/whoami", AuthMiddleware(NewTokenResolver(&cfg)), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"message":"token problem"}`, w.Body.String())

	token, err := SignToken("u-9", []byte("k"), time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u-9", w.Body.String())
}
