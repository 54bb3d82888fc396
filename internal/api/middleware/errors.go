package middleware

import "github.com/gin-gonic/gin"

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AbortError stops the chain with code as the machine-readable error. err,
// when set, becomes the message and is attached to the context for logging.
func AbortError(c *gin.Context, status int, code string, err error) {
	resp := ErrorResponse{Error: code}
	if err != nil {
		resp.Message = err.Error()
		c.Error(err)
	}
	c.AbortWithStatusJSON(status, resp)
}
