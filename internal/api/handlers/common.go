package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/api/middleware"
)

type ErrorResponse = middleware.ErrorResponse

var abortError = middleware.AbortError

// chain returns guard followed by h in a new slice.
func chain(guard []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guard)+1)
	out = append(out, guard...)
	return append(out, h)
}
