package httpapi

import (
	"github.com/gin-gonic/gin"
)

// Envelope statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Envelope is the body of every API response. Extra keys (such as "user")
// are merged in next to status and message.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

func success(c *gin.Context, code int, message string) {
	c.JSON(code, Envelope{Status: StatusSuccess, Message: message})
}

func failure(c *gin.Context, code int, message string, errs any) {
	c.JSON(code, Envelope{Status: StatusFailed, Message: message, Errors: errs})
}

func abortFailure(c *gin.Context, code int, message string, errs any) {
	c.AbortWithStatusJSON(code, Envelope{Status: StatusFailed, Message: message, Errors: errs})
}
