package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the uniform structure for API error responses.
type ErrorBody struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Respond writes data as JSON with the given status code.
func Respond(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, data)
}

// Success returns a 200 response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, data)
}

// Error aborts the request with an ErrorBody for status.
func Error(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, ErrorBody{
		Status:  http.StatusText(status),
		Code:    status,
		Message: message,
		Path:    ctx.Request.URL.Path,
	})
}
