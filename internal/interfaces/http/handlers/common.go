// Package handlers holds the gin handlers of the lookup API.
package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/trialscope/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

// writeError writes a structured error response and aborts the chain.
func writeError(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{Code: code, Message: message})
}

// writeAppError maps application-level errors to HTTP status codes through
// the error code table. Rate-limit errors anywhere in the chain become 429
// with Retry-After; server-side messages are masked.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	if errors.IsRateLimited(err) {
		secs := int(math.Ceil(errors.RetryAfterOf(err).Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Code:       errors.CodeDataSourceRateLimited.String(),
			Message:    err.Error(),
			RetryAfter: secs,
		})
		return
	}

	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status == http.StatusInternalServerError {
		writeError(c, status, errors.CodeInternal.String(), "internal server error")
		return
	}
	writeError(c, status, code.String(), err.Error())
}

// requiredQuery returns the trimmed query parameter or an InvalidParam error.
func requiredQuery(c *gin.Context, key string) (string, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return "", errors.InvalidParam("query parameter " + key + " is required")
	}
	return v, nil
}
