package service

import (
	"context"
	"time"

	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/integration"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer 服务层 tracer, 未配置 TracerProvider 时为空实现
var tracer = otel.Tracer("github.com/mautops/docflow-gin/internal/service")

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"total_page"`
}

// newPagination 计算分页信息
func newPagination(page, pageSize int, total int64) PaginationInfo {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return PaginationInfo{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

// BatchOperationResult 批量操作结果
type BatchOperationResult struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// actorFrom 读取当前操作用户
func actorFrom(ctx context.Context) (auth.Actor, bool) {
	if ctx == nil {
		return auth.Actor{}, false
	}
	return auth.ActorFromContext(ctx)
}

// requireActor 要求存在操作用户
func requireActor(ctx context.Context) (auth.Actor, error) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return auth.Actor{}, withDetail(ErrPermissionDenied, "no acting user")
	}
	return actor, nil
}

// requireCapability 要求操作用户具备指定能力
func requireCapability(ctx context.Context, capability auth.Capability) (auth.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return actor, err
	}
	if !auth.Can(actor.Role, capability) {
		return actor, withDetail(ErrPermissionDenied, "role %q cannot %s", actor.Role, capability)
	}
	return actor, nil
}

// startSpan 开启服务层 span
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, name)
}

// endSpan 结束 span 并记录错误
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// notify 发送通知, dispatcher 为空时忽略
func notify(ctx context.Context, dispatcher integration.NotificationDispatcher, userIDs []string, n integration.Notification) {
	if dispatcher == nil || len(userIDs) == 0 {
		return
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	dispatcher.Notify(ctx, userIDs, n)
}
