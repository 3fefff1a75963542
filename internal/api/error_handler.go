package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/service"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件, 处理 handler 通过 c.Error 记录但尚未响应的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			return
		}
		respondServiceError(c, err)
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// statusForKind 错误分类对应的 HTTP 状态码
func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindPermission:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindExternalFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError 将服务层错误映射为响应
func respondServiceError(c *gin.Context, err error) {
	status := statusForKind(service.KindOf(err))

	var se *service.ServiceError
	if errors.As(err, &se) {
		Error(c, status, se.Code, err.Error())
		return
	}
	Error(c, status, "internal server error", err.Error())
}
