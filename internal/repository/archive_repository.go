package repository

import (
	"errors"

	"github.com/mautops/docflow-gin/internal/model"
	"gorm.io/gorm"
)

// ArchiveRepository 工作流归档仓储接口
type ArchiveRepository interface {
	Create(archive *model.WorkflowArchiveModel) error
	FindByWorkflowID(workflowID string) (*model.WorkflowArchiveModel, error)
	ExistsByWorkflowID(workflowID string) (bool, error)
	FindAll() ([]*model.WorkflowArchiveModel, error)
	WithTx(tx *gorm.DB) ArchiveRepository
}

// archiveRepository 归档仓储实现
type archiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository 创建归档仓储
func NewArchiveRepository(db *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *archiveRepository) WithTx(tx *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: tx}
}

// Create 创建归档记录, 重复归档时返回 gorm.ErrDuplicatedKey
func (r *archiveRepository) Create(archive *model.WorkflowArchiveModel) error {
	return r.db.Create(archive).Error
}

// FindByWorkflowID 根据工作流 ID 查找归档
func (r *archiveRepository) FindByWorkflowID(workflowID string) (*model.WorkflowArchiveModel, error) {
	var archive model.WorkflowArchiveModel
	if err := r.db.Where("workflow_id = ?", workflowID).First(&archive).Error; err != nil {
		return nil, err
	}
	return &archive, nil
}

// ExistsByWorkflowID 判断工作流是否已归档
func (r *archiveRepository) ExistsByWorkflowID(workflowID string) (bool, error) {
	_, err := r.FindByWorkflowID(workflowID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// FindAll 按完成时间倒序返回全部归档
func (r *archiveRepository) FindAll() ([]*model.WorkflowArchiveModel, error) {
	var archives []*model.WorkflowArchiveModel
	err := r.db.Order("completed_at DESC").Order("id ASC").Find(&archives).Error
	return archives, err
}
