package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/sirupsen/logrus"
)

var upgrader = gorillaWS.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 来源校验由前置 CORS 配置负责
		return true
	},
}

// WebSocketHandler 通知推送 WebSocket 处理器
// 优先使用认证中间件写入的用户; 浏览器无法设置请求头时, 可通过 token 查询参数认证
func WebSocketHandler(hub *Hub, validator *auth.KeycloakTokenValidator, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFromContext(c.Request.Context())
		if !ok {
			token := c.Query("token")
			if token == "" || validator == nil {
				c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "missing token"})
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "invalid token"})
				return
			}
			actor = auth.Actor{UserID: claims.Subject, Role: auth.PrimaryRole(claims.RealmAccess.Roles)}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade 已经写入了错误响应
			return
		}

		client := NewClient(uuid.New().String(), actor.UserID, hub, conn, logger)
		hub.Register <- client

		go client.ReadPump()
		go client.WritePump()
	}
}
