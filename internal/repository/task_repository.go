package repository

import (
	"strings"
	"time"

	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskSortFields 允许排序的列
var TaskSortFields = []string{"created_at", "updated_at", "due_date", "priority", "status", "title"}

// unassignedCondition 指派集合为空的条件, 同时兼容 SQLite 与 PostgreSQL
const unassignedCondition = "(assigned_to IS NULL OR CAST(assigned_to AS TEXT) IN ('[]', 'null', ''))"

// likeEscaper 转义 LIKE 通配符, 配合 ESCAPE '\' 使用
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 将输入按字面值匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Create(task *model.TaskModel) error
	CreateBatch(tasks []*model.TaskModel) error
	Save(task *model.TaskModel) error
	FindByID(id string) (*model.TaskModel, error)
	// FindByIDForUpdate 读取并锁定任务行, 必须在事务内调用
	FindByIDForUpdate(id string) (*model.TaskModel, error)
	FindByFilter(filter *TaskFilter) ([]*model.TaskModel, int64, error)
	// FindByWorkflow 按创建时间升序返回工作流下的任务
	FindByWorkflow(workflowID string) ([]*model.TaskModel, error)
	FindUnassignedByWorkflow(workflowID string) ([]*model.TaskModel, error)
	CountByWorkflow(workflowID string) (total int64, completed int64, err error)
	// ClaimAssignment 仅当版本号未变化且指派集合仍为空时写入指派
	ClaimAssignment(id string, version int, assignees []string, status string) (bool, error)
	Delete(id string) error
	DeleteByWorkflow(workflowID string) (int64, error)
	WithTx(tx *gorm.DB) TaskRepository
}

// TaskFilter 任务查询过滤器
// 所有字段均为可选, 查询按固定顺序拼接参数化条件
type TaskFilter struct {
	WorkflowID     *string
	StandaloneOnly bool // 只查询不属于任何工作流的任务
	Status         *string
	Type           *string
	Priority       *string
	Assignee       *string
	UnassignedOnly bool
	DueBefore      *time.Time
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *taskRepository) WithTx(tx *gorm.DB) TaskRepository {
	return &taskRepository{db: tx}
}

// Create 创建任务
func (r *taskRepository) Create(task *model.TaskModel) error {
	return r.db.Create(task).Error
}

// CreateBatch 批量创建任务
func (r *taskRepository) CreateBatch(tasks []*model.TaskModel) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.db.Create(&tasks).Error
}

// Save 保存任务
func (r *taskRepository) Save(task *model.TaskModel) error {
	return r.db.Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIDForUpdate 根据 ID 查找任务并加行锁
func (r *taskRepository) FindByIDForUpdate(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByFilter 根据过滤器查找任务
func (r *taskRepository) FindByFilter(filter *TaskFilter) ([]*model.TaskModel, int64, error) {
	if filter == nil {
		filter = &TaskFilter{}
	}

	query := r.db.Model(&model.TaskModel{})
	if filter.WorkflowID != nil {
		query = query.Where("workflow_id = ?", *filter.WorkflowID)
	} else if filter.StandaloneOnly {
		query = query.Where("workflow_id IS NULL")
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}
	if filter.Assignee != nil {
		query = query.Where(`CAST(assigned_to AS TEXT) LIKE ? ESCAPE '\'`, `%"`+escapeLike(*filter.Assignee)+`"%`)
	}
	if filter.UnassignedOnly {
		query = query.Where(unassignedCondition)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date IS NOT NULL AND due_date <= ?", *filter.DueBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := "created_at"
	if filter.SortBy != "" && utils.ValidateSortField(filter.SortBy, TaskSortFields) == nil {
		sortBy = filter.SortBy
	}
	query = query.Order(clause.OrderByColumn{
		Column: clause.Column{Name: sortBy},
		Desc:   utils.SanitizeSortOrder(filter.SortOrder) == "DESC",
	}).Order("id ASC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var tasks []*model.TaskModel
	if err := query.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// FindByWorkflow 查找工作流下的全部任务
func (r *taskRepository) FindByWorkflow(workflowID string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.Where("workflow_id = ?", workflowID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

// FindUnassignedByWorkflow 查找工作流下尚未指派的任务
func (r *taskRepository) FindUnassignedByWorkflow(workflowID string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.Where("workflow_id = ?", workflowID).
		Where(unassignedCondition).
		Where("status NOT IN ?", []string{"completed", "cancelled"}).
		Order("created_at ASC").
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

// CountByWorkflow 统计工作流的任务总数和已完成数
func (r *taskRepository) CountByWorkflow(workflowID string) (int64, int64, error) {
	var total, completed int64
	if err := r.db.Model(&model.TaskModel{}).Where("workflow_id = ?", workflowID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.Model(&model.TaskModel{}).
		Where("workflow_id = ? AND status = ?", workflowID, "completed").
		Count(&completed).Error; err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// ClaimAssignment 以版本号做比较交换写入指派
func (r *taskRepository) ClaimAssignment(id string, version int, assignees []string, status string) (bool, error) {
	result := r.db.Model(&model.TaskModel{}).
		Where("id = ? AND version = ?", id, version).
		Where(unassignedCondition).
		Updates(map[string]interface{}{
			"assigned_to": datatypes.JSONSlice[string](assignees),
			"status":      status,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete 删除任务
func (r *taskRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&model.TaskModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByWorkflow 删除工作流下的全部任务
func (r *taskRepository) DeleteByWorkflow(workflowID string) (int64, error) {
	result := r.db.Where("workflow_id = ?", workflowID).Delete(&model.TaskModel{})
	return result.RowsAffected, result.Error
}
