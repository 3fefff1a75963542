package auth

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Actor 当前操作用户
type Actor struct {
	UserID string
	Role   string
}

type actorKey struct{}

// WithActor 将操作用户写入 context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext 从 context 读取操作用户
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.UserID != ""
}

// setActor 同时写入 gin 上下文和请求 context
func setActor(c *gin.Context, actor Actor) {
	c.Set("user_id", actor.UserID)
	c.Set("role", actor.Role)
	c.Request = c.Request.WithContext(WithActor(c.Request.Context(), actor))
}
