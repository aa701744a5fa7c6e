package handlers

import (
	"net/http"

	"github.com/creditrail/creditrail/internal/credits"
	"github.com/gin-gonic/gin"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// statusForCode maps service error codes to HTTP statuses.
func statusForCode(code credits.ErrorCode) int {
	switch code {
	case credits.ErrCodeInvalidParams:
		return http.StatusBadRequest
	case credits.ErrCodeNotFound, credits.ErrCodeCodeNotFound, credits.ErrCodePlanNotFound:
		return http.StatusNotFound
	case credits.ErrCodeConflict:
		return http.StatusConflict
	case credits.ErrCodeLimitReached:
		return http.StatusTooManyRequests
	case credits.ErrCodeInsufficientBalance:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadRequest
	}
}

// rejectWithCode writes the standard failure envelope for a service result.
func rejectWithCode(c *gin.Context, code credits.ErrorCode) {
	c.JSON(statusForCode(code), gin.H{"success": false, "error": string(code)})
}
