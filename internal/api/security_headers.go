package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// 接口只返回 JSON 与 BPMN XML, 不需要加载任何资源
const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// Swagger UI 需要内联脚本和样式
const swaggerContentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"

// SecurityHeadersMiddleware 安全头中间件
// hsts 仅在生产环境开启, 开发环境通常走明文 HTTP
func SecurityHeadersMiddleware(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")

		if strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
			c.Header("Content-Security-Policy", swaggerContentSecurityPolicy)
		} else {
			c.Header("Content-Security-Policy", apiContentSecurityPolicy)
			// 工作流数据包含文档信息, 禁止中间缓存
			c.Header("Cache-Control", "no-store")
		}

		if hsts {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
