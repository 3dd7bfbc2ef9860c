// Package apierror maps failures to HTTP responses with a uniform
// {"message": ...} body.
package apierror

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/gin-gonic/gin"
)

// UnknownMessage is the body message for unclassified failures.
const UnknownMessage = "Unknown Error"

// Error is a failure that carries its own HTTP status.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// BadRequest returns a 400 error.
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// Missing returns a 400 error for an absent required field.
func Missing(field string) *Error {
	return BadRequest(field + " is missing")
}

// Unauthorized returns a 401 error.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// Classify returns the status and client-safe message for err.
func Classify(err error) (int, string) {
	var apiErr *Error
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var forbidden *registrystore.ForbiddenError

	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status, apiErr.Message
	case errors.As(err, &notFound):
		return http.StatusBadRequest, notFound.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &conflict):
		return http.StatusBadRequest, conflict.Error()
	case errors.As(err, &forbidden):
		return http.StatusUnauthorized, "not authorized"
	default:
		return http.StatusInternalServerError, UnknownMessage
	}
}

// Write aborts the request with the response for err. Unclassified errors
// are logged and never echoed to the client.
func Write(c *gin.Context, err error) {
	status, message := Classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// UnsupportedMethod answers requests whose method a known route does not serve.
func UnsupportedMethod(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "unsupported method"})
}

// Install makes r answer unsupported methods with 400 instead of 405.
func Install(r *gin.Engine) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(UnsupportedMethod)
}
