package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/service"
)

// requestIDKey 请求 ID 在 gin 上下文中的键
const requestIDKey = "request_id"

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code" example:"0"`          // 0 表示成功
	Message string      `json:"message" example:"success"` // 响应消息
	Data    interface{} `json:"data"`                      // 响应数据
}

// ErrorResponse 错误响应格式, message 为错误码 (如 WORKFLOW_NOT_FOUND)
type ErrorResponse struct {
	Code      int    `json:"code" example:"404"`
	Message   string `json:"message" example:"WORKFLOW_NOT_FOUND"`
	Detail    string `json:"detail,omitempty" example:"workflow not found"`
	RequestID string `json:"request_id,omitempty" example:"6f1c2b7e-8a4d-4c1e-9b3a-2d5e7f9a0c11"`
}

// PaginatedResponse 分页响应
type PaginatedResponse struct {
	Code       int            `json:"code" example:"0"`
	Message    string         `json:"message" example:"success"`
	Data       interface{}    `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int   `json:"page" example:"1"`
	PageSize  int   `json:"page_size" example:"20"`
	Total     int64 `json:"total" example:"100"`
	TotalPage int   `json:"total_page" example:"5"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

// Error 错误响应, 附带请求 ID 便于与请求日志对应
func Error(c *gin.Context, code int, message string, detail string) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}

	c.JSON(statusCode, ErrorResponse{
		Code:      code,
		Message:   message,
		Detail:    detail,
		RequestID: c.GetString(requestIDKey),
	})
}

// Paginated 分页响应
func Paginated(c *gin.Context, data interface{}, p service.PaginationInfo) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Code:    0,
		Message: "success",
		Data:    data,
		Pagination: PaginationInfo{
			Page:      p.Page,
			PageSize:  p.PageSize,
			Total:     p.Total,
			TotalPage: p.TotalPage,
		},
	})
}

// XML 原样输出 XML 文档 (BPMN 流程图)
func XML(c *gin.Context, doc []byte) {
	c.Data(http.StatusOK, "application/xml; charset=utf-8", doc)
}
