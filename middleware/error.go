package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/forumposts/models"
	"github.com/cppla/forumposts/services"
	"github.com/cppla/forumposts/utils"
)

// ErrorHandler renders the last error attached to the context by a handler.
func ErrorHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		if len(ctx.Errors) == 0 {
			return
		}
		err := ctx.Errors.Last().Err
		status := StatusFor(err)

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.String("request_id", ctx.GetString(requestIDKey)),
			zap.Error(err),
		}
		message := err.Error()
		if status >= http.StatusInternalServerError {
			utils.Logger.Error("request failed", fields...)
			message = "internal server error"
		} else {
			utils.Logger.Info("request rejected", fields...)
		}

		if ctx.Writer.Written() {
			return
		}
		utils.Error(ctx, status, message)
	}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case services.IsNotFound(err):
		return http.StatusNotFound
	case models.IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
