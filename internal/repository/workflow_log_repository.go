package repository

import (
	"github.com/mautops/docflow-gin/internal/model"
	"gorm.io/gorm"
)

// WorkflowLogRepository 工作流日志仓储接口, 只提供追加和读取
type WorkflowLogRepository interface {
	Append(log *model.WorkflowLogModel) error
	FindByWorkflowID(workflowID string) ([]*model.WorkflowLogModel, error)
	CountByWorkflowID(workflowID string) (int64, error)
}

// workflowLogRepository 工作流日志仓储实现
type workflowLogRepository struct {
	db *gorm.DB
}

// NewWorkflowLogRepository 创建工作流日志仓储
func NewWorkflowLogRepository(db *gorm.DB) WorkflowLogRepository {
	return &workflowLogRepository{db: db}
}

// Append 追加一条日志
func (r *workflowLogRepository) Append(log *model.WorkflowLogModel) error {
	return r.db.Create(log).Error
}

// FindByWorkflowID 按时间倒序返回工作流日志
func (r *workflowLogRepository) FindByWorkflowID(workflowID string) ([]*model.WorkflowLogModel, error) {
	var logs []*model.WorkflowLogModel
	err := r.db.Where("workflow_id = ?", workflowID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&logs).Error
	return logs, err
}

// CountByWorkflowID 统计工作流日志条数
func (r *workflowLogRepository) CountByWorkflowID(workflowID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.WorkflowLogModel{}).Where("workflow_id = ?", workflowID).Count(&count).Error
	return count, err
}
