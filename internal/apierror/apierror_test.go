package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"api error", Missing("uid"), http.StatusBadRequest, "uid is missing"},
		{"unauthorized", Unauthorized("nope"), http.StatusUnauthorized, "nope"},
		{"not found", &registrystore.NotFoundError{Resource: "user", ID: "u1"}, http.StatusBadRequest, "unknown user: u1"},
		{"wrapped conflict", fmt.Errorf("tx: %w", &registrystore.ConflictError{Message: "already replied"}), http.StatusBadRequest, "already replied"},
		{"validation", &registrystore.ValidationError{Field: "page", Message: "must be at least 1"}, http.StatusBadRequest, "validation error on page: must be at least 1"},
		{"forbidden", &registrystore.ForbiddenError{}, http.StatusUnauthorized, "not authorized"},
		{"unknown", errors.New("connection reset by peer"), http.StatusInternalServerError, UnknownMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, message := Classify(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.message, message)
		})
	}
}

func TestWrite_HidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		Write(c, errors.New("pq: password authentication failed"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"message":"Unknown Error"}`, w.Body.String())
}

func TestInstall_UnsupportedMethod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Install(r)
	r.GET("/only-get", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/only-get", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"message":"unsupported method"}`, w.Body.String())
}
