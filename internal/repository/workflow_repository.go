package repository

import (
	"github.com/mautops/docflow-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkflowRepository 工作流仓储接口
type WorkflowRepository interface {
	Create(wf *model.WorkflowModel) error
	Save(wf *model.WorkflowModel) error
	FindByID(id string) (*model.WorkflowModel, error)
	// FindByIDForUpdate 读取并锁定工作流行, 必须在事务内调用
	FindByIDForUpdate(id string) (*model.WorkflowModel, error)
	FindByFilter(filter *WorkflowFilter) ([]*model.WorkflowModel, int64, error)
	UpdateStatus(id string, status string) error
	Delete(id string) error
	CountByStatus() (map[string]int64, error)
	WithTx(tx *gorm.DB) WorkflowRepository
}

// WorkflowFilter 工作流查询过滤器
type WorkflowFilter struct {
	Status     *string
	CreatedBy  *string
	DocumentID *string
	Page       int
	PageSize   int
}

// workflowRepository 工作流仓储实现
type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository 创建工作流仓储
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *workflowRepository) WithTx(tx *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: tx}
}

// Create 创建工作流
func (r *workflowRepository) Create(wf *model.WorkflowModel) error {
	return r.db.Create(wf).Error
}

// Save 保存工作流
func (r *workflowRepository) Save(wf *model.WorkflowModel) error {
	return r.db.Save(wf).Error
}

// FindByID 根据 ID 查找工作流
func (r *workflowRepository) FindByID(id string) (*model.WorkflowModel, error) {
	var wf model.WorkflowModel
	if err := r.db.Where("id = ?", id).First(&wf).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

// FindByIDForUpdate 根据 ID 查找并加行锁
func (r *workflowRepository) FindByIDForUpdate(id string) (*model.WorkflowModel, error) {
	var wf model.WorkflowModel
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wf).Error
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// FindByFilter 根据过滤器分页查找工作流
func (r *workflowRepository) FindByFilter(filter *WorkflowFilter) ([]*model.WorkflowModel, int64, error) {
	query := r.db.Model(&model.WorkflowModel{})
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.CreatedBy != nil {
			query = query.Where("created_by = ?", *filter.CreatedBy)
		}
		if filter.DocumentID != nil {
			query = query.Where("document_id = ?", *filter.DocumentID)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id ASC")
	if filter != nil && filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var workflows []*model.WorkflowModel
	if err := query.Find(&workflows).Error; err != nil {
		return nil, 0, err
	}
	return workflows, total, nil
}

// UpdateStatus 更新工作流状态
func (r *workflowRepository) UpdateStatus(id string, status string) error {
	result := r.db.Model(&model.WorkflowModel{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除工作流
func (r *workflowRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&model.WorkflowModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByStatus 按状态统计工作流数量
func (r *workflowRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&model.WorkflowModel{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
