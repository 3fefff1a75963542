package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/docflow-gin/internal/assignment"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"github.com/mautops/docflow-gin/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskService 任务服务接口
type TaskService interface {
	Create(ctx context.Context, req *CreateTaskRequest) (*model.TaskModel, error)
	Get(id string) (*model.TaskModel, error)
	List(filter *TaskListFilter) (*TaskListResponse, error)
	ListByWorkflow(workflowID string) ([]*model.TaskModel, error)
	Update(ctx context.Context, id string, req *UpdateTaskRequest) (*model.TaskModel, error)
	SetStatus(ctx context.Context, id string, status string) (*model.TaskModel, error)
	Delete(ctx context.Context, id string) error
}

// CreateTaskRequest 创建任务请求, WorkflowID 为空时创建独立任务
type CreateTaskRequest struct {
	WorkflowID  string     `json:"workflow_id"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority"`
	Type        string     `json:"type"` // 为空时根据标题推断
	AssignedTo  []string   `json:"assigned_to"`
	FileID      string     `json:"file_id"`
}

// UpdateTaskRequest 更新任务请求, 字段为空表示不修改
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority"`
	Type        *string    `json:"type"`
	FileID      *string    `json:"file_id"`
}

// TaskListFilter 任务列表过滤器
type TaskListFilter struct {
	WorkflowID     *string
	StandaloneOnly bool
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

// TaskListResponse 任务列表响应
type TaskListResponse struct {
	Data       []*model.TaskModel
	Pagination PaginationInfo
}

// taskService 任务服务实现
type taskService struct {
	db           *gorm.DB
	taskRepo     repository.TaskRepository
	workflowRepo repository.WorkflowRepository
	loadIndex    UserLoadIndex
	logRecorder  WorkflowLogRecorder
}

// NewTaskService 创建任务服务
func NewTaskService(
	db *gorm.DB,
	taskRepo repository.TaskRepository,
	workflowRepo repository.WorkflowRepository,
	loadIndex UserLoadIndex,
	logRecorder WorkflowLogRecorder,
) TaskService {
	return &taskService{
		db:           db,
		taskRepo:     taskRepo,
		workflowRepo: workflowRepo,
		loadIndex:    loadIndex,
		logRecorder:  logRecorder,
	}
}

// Create 创建任务
func (s *taskService) Create(ctx context.Context, req *CreateTaskRequest) (*model.TaskModel, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidInput("request is required")
	}

	// 1. 校验参数
	title := strings.TrimSpace(req.Title)
	if err := utils.ValidateName(title); err != nil {
		return nil, invalidInput("title: %v", err)
	}
	priority, ok := statemachine.ParsePriority(req.Priority)
	if !ok {
		return nil, invalidInput("priority %q", req.Priority)
	}
	taskType := assignment.ClassifyTitle(title)
	if req.Type != "" {
		parsed, ok := statemachine.ParseTaskType(req.Type)
		if !ok {
			return nil, invalidInput("type %q", req.Type)
		}
		taskType = parsed
	}
	if len(req.AssignedTo) > 0 {
		if err := utils.ValidateIDs(req.AssignedTo); err != nil {
			return nil, invalidInput("assigned_to: %v", err)
		}
		for _, userID := range req.AssignedTo {
			if _, err := s.loadIndex.GetUser(userID); err != nil {
				return nil, err
			}
		}
	}

	// 2. 校验所属工作流
	var workflowID *string
	if req.WorkflowID != "" {
		if _, err := s.workflowRepo.FindByID(req.WorkflowID); err != nil {
			return nil, notFoundOr(err, ErrWorkflowNotFound, "failed to get workflow")
		}
		id := req.WorkflowID
		workflowID = &id
	}

	// 3. 写入
	now := time.Now()
	task := &model.TaskModel{
		ID:          uuid.New().String(),
		Title:       title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    string(priority),
		Status:      string(statemachine.TaskPending),
		Type:        string(taskType),
		WorkflowID:  workflowID,
		AssignedTo:  datatypes.JSONSlice[string](req.AssignedTo),
		CreatedBy:   actor.UserID,
		FileID:      req.FileID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(req.AssignedTo) > 0 {
		task.Status = string(statemachine.TaskAssigned)
	}
	if err := task.Validate(); err != nil {
		return nil, invalidInput("%v", err)
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	metrics.RecordTasksCreated("manual", 1)
	if workflowID != nil {
		s.logRecorder.Record(ctx, *workflowID, fmt.Sprintf("Task %q added", task.Title))
	}
	return task, nil
}

// Get 查询任务
func (s *taskService) Get(id string) (*model.TaskModel, error) {
	task, err := s.taskRepo.FindByID(id)
	if err != nil {
		return nil, notFoundOr(err, ErrTaskNotFound, "failed to get task")
	}
	return task, nil
}

// List 按过滤条件查询任务
func (s *taskService) List(filter *TaskListFilter) (*TaskListResponse, error) {
	if filter == nil {
		filter = &TaskListFilter{}
	}

	// 1. 校验枚举值和排序字段
	if filter.Status != nil {
		if _, err := statemachine.ParseTaskStatus(*filter.Status); err != nil {
			return nil, withDetail(ErrInvalidStatus, "%q", *filter.Status)
		}
	}
	if filter.Type != nil {
		if _, ok := statemachine.ParseTaskType(*filter.Type); !ok {
			return nil, invalidInput("type %q", *filter.Type)
		}
	}
	if filter.Priority != nil {
		if _, ok := statemachine.ParsePriority(*filter.Priority); !ok || *filter.Priority == "" {
			return nil, invalidInput("priority %q", *filter.Priority)
		}
	}
	if filter.Assignee != nil {
		if err := utils.ValidateID(*filter.Assignee); err != nil {
			return nil, invalidInput("assignee: %v", err)
		}
	}
	if filter.SortBy != "" {
		if err := utils.ValidateSortField(filter.SortBy, repository.TaskSortFields); err != nil {
			return nil, invalidInput("sort_by: %v", err)
		}
	}

	tasks, total, err := s.taskRepo.FindByFilter(&repository.TaskFilter{
		WorkflowID:     filter.WorkflowID,
		StandaloneOnly: filter.StandaloneOnly,
		Status:         filter.Status,
		Type:           filter.Type,
		Priority:       filter.Priority,
		Assignee:       filter.Assignee,
		UnassignedOnly: filter.UnassignedOnly,
		DueBefore:      filter.DueBefore,
		Page:           filter.Page,
		PageSize:       filter.PageSize,
		SortBy:         filter.SortBy,
		SortOrder:      filter.SortOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return &TaskListResponse{
		Data:       tasks,
		Pagination: newPagination(filter.Page, filter.PageSize, total),
	}, nil
}

// ListByWorkflow 按创建顺序返回工作流下的任务
func (s *taskService) ListByWorkflow(workflowID string) ([]*model.TaskModel, error) {
	if _, err := s.workflowRepo.FindByID(workflowID); err != nil {
		return nil, notFoundOr(err, ErrWorkflowNotFound, "failed to get workflow")
	}
	tasks, err := s.taskRepo.FindByWorkflow(workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow tasks: %w", err)
	}
	return tasks, nil
}

// canModifyTask 具备管理能力, 创建人或指派人可以修改任务
func canModifyTask(actor auth.Actor, task *model.TaskModel) bool {
	if auth.CanManageWorkflows(actor.Role) || actor.UserID == task.CreatedBy {
		return true
	}
	for _, userID := range task.AssignedTo {
		if userID == actor.UserID {
			return true
		}
	}
	return false
}

// Update 更新任务信息
func (s *taskService) Update(ctx context.Context, id string, req *UpdateTaskRequest) (*model.TaskModel, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidInput("request is required")
	}

	// 1. 校验全部字段
	if req.Title != nil {
		if err := utils.ValidateName(*req.Title); err != nil {
			return nil, invalidInput("title: %v", err)
		}
	}
	var priority statemachine.Priority
	if req.Priority != nil {
		p, ok := statemachine.ParsePriority(*req.Priority)
		if !ok {
			return nil, invalidInput("priority %q", *req.Priority)
		}
		priority = p
	}
	var taskType statemachine.TaskType
	if req.Type != nil {
		t, ok := statemachine.ParseTaskType(*req.Type)
		if !ok {
			return nil, invalidInput("type %q", *req.Type)
		}
		taskType = t
	}

	// 2. 锁定并写入
	var updated *model.TaskModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.taskRepo.WithTx(tx)
		task, err := repo.FindByIDForUpdate(id)
		if err != nil {
			return notFoundOr(err, ErrTaskNotFound, "failed to lock task")
		}
		if !canModifyTask(actor, task) {
			return withDetail(ErrPermissionDenied, "cannot update task %s", id)
		}

		if req.Title != nil {
			task.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.DueDate != nil {
			task.DueDate = req.DueDate
		}
		if req.Priority != nil {
			task.Priority = string(priority)
		}
		if req.Type != nil {
			task.Type = string(taskType)
		}
		if req.FileID != nil {
			task.FileID = *req.FileID
		}
		task.Version++
		task.UpdatedAt = time.Now()

		if err := repo.Save(task); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.WorkflowID != nil {
		s.logRecorder.Record(ctx, *updated.WorkflowID, fmt.Sprintf("Task %q updated", updated.Title))
	}
	return updated, nil
}

// SetStatus 推进任务状态
// 完成最后一个任务不会自动完成工作流
func (s *taskService) SetStatus(ctx context.Context, id string, status string) (*model.TaskModel, error) {
	to, err := statemachine.ParseTaskStatus(status)
	if err != nil {
		return nil, withDetail(ErrInvalidStatus, "%q", status)
	}
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	var (
		updated *model.TaskModel
		from    statemachine.TaskStatus
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.taskRepo.WithTx(tx)
		task, err := repo.FindByIDForUpdate(id)
		if err != nil {
			return notFoundOr(err, ErrTaskNotFound, "failed to lock task")
		}
		if !canModifyTask(actor, task) {
			return withDetail(ErrPermissionDenied, "cannot change status of task %s", id)
		}

		from = statemachine.TaskStatus(task.Status)
		if err := statemachine.ValidateTaskTransition(from, to); err != nil {
			return withDetail(ErrInvalidTransition, "%s -> %s", from, to)
		}
		if to == statemachine.TaskAssigned && task.IsUnassigned() {
			return invalidInput("task %s has no assignee", id)
		}

		task.Status = string(to)
		task.Version++
		task.UpdatedAt = time.Now()
		if err := repo.Save(task); err != nil {
			return fmt.Errorf("failed to update task status: %w", err)
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordStatusTransition("task", string(to))
	if updated.WorkflowID != nil {
		s.logRecorder.Record(ctx, *updated.WorkflowID, fmt.Sprintf("Task %q status changed from %s to %s", updated.Title, from, to))
	}
	return updated, nil
}

// Delete 删除任务
func (s *taskService) Delete(ctx context.Context, id string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	task, err := s.taskRepo.FindByID(id)
	if err != nil {
		return notFoundOr(err, ErrTaskNotFound, "failed to get task")
	}
	if !auth.CanManageWorkflows(actor.Role) && actor.UserID != task.CreatedBy {
		return withDetail(ErrPermissionDenied, "cannot delete task %s", id)
	}
	if err := s.taskRepo.Delete(id); err != nil {
		return notFoundOr(err, ErrTaskNotFound, "failed to delete task")
	}

	if task.WorkflowID != nil {
		s.logRecorder.Record(ctx, *task.WorkflowID, fmt.Sprintf("Task %q deleted", task.Title))
	}
	return nil
}
