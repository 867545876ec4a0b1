// Package errors provides the JSON error-response shape the REST surface
// uses, adapted from the teacher's HTTPErrorHandler pattern. The core
// delivery packages use plain wrapped stdlib errors; this package exists
// for the HTTP boundary only.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
)

// ErrorResponse is the standardized JSON body for API errors.
type ErrorResponse struct {
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	RequestID  string                 `json:"request_id,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Method     string                 `json:"method,omitempty"`
	StatusCode int                    `json:"status_code"`
}

// Handler maps errors to HTTP responses for echo's HTTPErrorHandler hook.
type Handler struct {
	production bool
}

// NewHandler builds a Handler; cfg.environment == "production" hides
// internal error detail from clients.
func NewHandler(cfg *viper.Viper) *Handler {
	return &Handler{production: cfg.GetString("environment") == "production"}
}

// HTTPErrorHandler handles HTTP errors for Echo.
func (h *Handler) HTTPErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "Internal server error"
	details := make(map[string]interface{})
	errCode := "INTERNAL_ERROR"

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	path := c.Request().URL.Path
	method := c.Request().Method

	switch e := err.(type) {
	case *echo.HTTPError:
		code = e.Code
		message = fmt.Sprintf("%v", e.Message)
		switch code {
		case http.StatusNotFound:
			errCode = "NOT_FOUND"
		case http.StatusBadRequest:
			errCode = "BAD_REQUEST"
		case http.StatusUnauthorized:
			errCode = "UNAUTHORIZED"
		case http.StatusForbidden:
			errCode = "FORBIDDEN"
		}

	case *json.SyntaxError:
		code = http.StatusBadRequest
		message = "Invalid JSON format"
		errCode = "INVALID_JSON"
		details["offset"] = e.Offset

	default:
		if strings.Contains(err.Error(), "not found") {
			code = http.StatusNotFound
			errCode = "NOT_FOUND"
		}
	}

	if h.production && code == http.StatusInternalServerError {
		message = "Internal server error"
		details = map[string]interface{}{"error_id": requestID}
	}

	response := ErrorResponse{
		Error: message, Message: message, Code: errCode, Details: details,
		Timestamp: time.Now(), RequestID: requestID, Path: path, Method: method, StatusCode: code,
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
		} else {
			_ = c.JSON(code, response)
		}
	}
}
