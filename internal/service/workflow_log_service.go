package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// WorkflowLogRecorder 工作流操作日志
type WorkflowLogRecorder interface {
	// Record 追加一条日志, 写入失败只记录到运行日志, 不返回给调用方
	Record(ctx context.Context, workflowID string, message string)
	List(workflowID string) ([]*model.WorkflowLogModel, error)
}

// workflowLogRecorder 工作流操作日志实现
type workflowLogRecorder struct {
	logRepo repository.WorkflowLogRepository
	logger  logrus.FieldLogger
}

// NewWorkflowLogRecorder 创建工作流操作日志记录器
func NewWorkflowLogRecorder(logRepo repository.WorkflowLogRepository, logger logrus.FieldLogger) WorkflowLogRecorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &workflowLogRecorder{
		logRepo: logRepo,
		logger:  logger,
	}
}

// Record 记录工作流操作
func (r *workflowLogRecorder) Record(ctx context.Context, workflowID string, message string) {
	entry := &model.WorkflowLogModel{
		WorkflowID: workflowID,
		Message:    message,
		CreatedAt:  time.Now(),
	}

	if actor, ok := actorFrom(ctx); ok {
		entry.Message = fmt.Sprintf("%s (by %s)", message, actor.UserID)
	}

	if err := entry.Validate(); err != nil {
		r.logger.WithError(err).WithField("workflow_id", workflowID).Warn("skip invalid workflow log")
		return
	}
	if err := r.logRepo.Append(entry); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"workflow_id": workflowID,
			"message":     message,
		}).Error("failed to record workflow log")
	}
}

// List 按时间倒序返回工作流日志
func (r *workflowLogRecorder) List(workflowID string) ([]*model.WorkflowLogModel, error) {
	logs, err := r.logRepo.FindByWorkflowID(workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow logs: %w", err)
	}
	return logs, nil
}
