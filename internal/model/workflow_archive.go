package model

import (
	"errors"
	"time"
)

// WorkflowArchiveModel 工作流归档数据模型
// 每个工作流至多一条, 由唯一索引保证
type WorkflowArchiveModel struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)"`
	WorkflowID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_workflow_archives_workflow_id"`
	Name              string    `gorm:"type:varchar(255);not null"`
	Description       string    `gorm:"type:text"`
	DocumentID        string    `gorm:"type:varchar(64);index"`
	CreatedBy         string    `gorm:"type:varchar(64)"`
	TotalTasks        int       `gorm:"not null;default:0"`
	CompletedTasks    int       `gorm:"not null;default:0"`
	ValidationReport  string    `gorm:"type:text"`
	WorkflowCreatedAt time.Time `gorm:"not null"`
	CompletedAt       time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (WorkflowArchiveModel) TableName() string {
	return "workflow_archives"
}

// Validate 验证归档模型
func (am *WorkflowArchiveModel) Validate() error {
	if am.ID == "" {
		return errors.New("archive ID is required")
	}
	if am.WorkflowID == "" {
		return errors.New("workflow ID is required")
	}
	if am.CompletedTasks > am.TotalTasks {
		return errors.New("completed tasks exceed total tasks")
	}
	return nil
}
