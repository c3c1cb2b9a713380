package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ksred/intake-api/internal/orders"
	"github.com/ksred/intake-api/internal/sequencer"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeOverfill      = "OVERFILL"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "SEQUENCING_UNAVAILABLE"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// HandleError maps a domain error to the appropriate response
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "order not found")
	case errors.Is(err, orders.ErrOverfill):
		Conflict(c, "execution exceeds remaining quantity")
	case sequencer.IsRetryable(err):
		ServiceUnavailable(c, "sequencing unavailable, retry the submission")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a 200 response with the given payload
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeNotFound,
			Message: message,
		},
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeBadRequest,
			Message: message,
		},
	})
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeOverfill,
			Message: message,
		},
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeInternalError,
			Message: message,
		},
	})
}

// ServiceUnavailable sends a 503 response for retryable failures
func ServiceUnavailable(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeUnavailable,
			Message: message,
		},
	})
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *gin.Context, message string) {
	c.JSON(http.StatusTooManyRequests, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeRateLimited,
			Message: message,
		},
	})
}
