package model

import (
	"errors"
	"time"
)

// WorkflowLogModel 工作流操作日志, 只追加
type WorkflowLogModel struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	WorkflowID string    `gorm:"type:varchar(64);not null;index"`
	Message    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (WorkflowLogModel) TableName() string {
	return "workflow_logs"
}

// Validate 验证日志模型
func (lm *WorkflowLogModel) Validate() error {
	if lm.WorkflowID == "" {
		return errors.New("workflow ID is required")
	}
	if lm.Message == "" {
		return errors.New("log message is required")
	}
	return nil
}
