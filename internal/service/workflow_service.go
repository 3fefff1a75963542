package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"github.com/mautops/docflow-gin/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// WorkflowService 工作流服务接口
type WorkflowService interface {
	Create(ctx context.Context, req *CreateWorkflowRequest) (*model.WorkflowModel, error)
	Get(id string) (*WorkflowDetail, error)
	List(filter *WorkflowListFilter) (*WorkflowListResponse, error)
	Update(ctx context.Context, id string, req *UpdateWorkflowRequest) (*model.WorkflowModel, error)
	// SetStatus 显式设置工作流状态, 迁移到 completed 时同步触发归档
	SetStatus(ctx context.Context, id string, status string) (*model.WorkflowModel, error)
	Delete(ctx context.Context, id string) error
}

// CreateWorkflowRequest 创建工作流请求
type CreateWorkflowRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority"` // high/medium/low, 默认 medium
	DocumentID  string     `json:"document_id"`
}

// UpdateWorkflowRequest 更新工作流请求, 字段为空表示不修改
type UpdateWorkflowRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority"`
	DocumentID  *string    `json:"document_id"`
}

// WorkflowListFilter 工作流列表过滤器
type WorkflowListFilter struct {
	Status     *string
	CreatedBy  *string
	DocumentID *string
	Page       int
	PageSize   int
}

// WorkflowDetail 工作流详情, 同时包含持久化状态和推导状态
type WorkflowDetail struct {
	Workflow       *model.WorkflowModel
	View           statemachine.StatusView
	TotalTasks     int
	CompletedTasks int
}

// WorkflowListResponse 工作流列表响应
type WorkflowListResponse struct {
	Data       []*WorkflowDetail
	Pagination PaginationInfo
}

// workflowService 工作流服务实现
type workflowService struct {
	db           *gorm.DB
	workflowRepo repository.WorkflowRepository
	taskRepo     repository.TaskRepository
	archiveSvc   ArchiveService
	logRecorder  WorkflowLogRecorder
	logger       logrus.FieldLogger
}

// NewWorkflowService 创建工作流服务
func NewWorkflowService(
	db *gorm.DB,
	workflowRepo repository.WorkflowRepository,
	taskRepo repository.TaskRepository,
	archiveSvc ArchiveService,
	logRecorder WorkflowLogRecorder,
	logger logrus.FieldLogger,
) WorkflowService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &workflowService{
		db:           db,
		workflowRepo: workflowRepo,
		taskRepo:     taskRepo,
		archiveSvc:   archiveSvc,
		logRecorder:  logRecorder,
		logger:       logger,
	}
}

// Create 创建工作流
func (s *workflowService) Create(ctx context.Context, req *CreateWorkflowRequest) (*model.WorkflowModel, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidInput("request is required")
	}

	// 1. 校验参数
	name := strings.TrimSpace(req.Name)
	if err := utils.ValidateName(name); err != nil {
		return nil, invalidInput("name: %v", err)
	}
	priority, ok := statemachine.ParsePriority(req.Priority)
	if !ok {
		return nil, invalidInput("priority %q", req.Priority)
	}
	if req.DocumentID != "" {
		if err := utils.ValidateID(req.DocumentID); err != nil {
			return nil, invalidInput("document_id: %v", err)
		}
	}

	// 2. 写入
	now := time.Now()
	wf := &model.WorkflowModel{
		ID:          uuid.New().String(),
		Name:        name,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      string(statemachine.WorkflowPending),
		Priority:    string(priority),
		CreatedBy:   actor.UserID,
		DocumentID:  req.DocumentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.workflowRepo.Create(wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	metrics.RecordWorkflowCreated()
	s.logRecorder.Record(ctx, wf.ID, fmt.Sprintf("Workflow %q created", wf.Name))
	return wf, nil
}

// Get 查询工作流详情
func (s *workflowService) Get(id string) (*WorkflowDetail, error) {
	wf, err := s.workflowRepo.FindByID(id)
	if err != nil {
		return nil, notFoundOr(err, ErrWorkflowNotFound, "failed to get workflow")
	}
	return s.detail(wf)
}

// detail 读取任务并计算推导状态
func (s *workflowService) detail(wf *model.WorkflowModel) (*WorkflowDetail, error) {
	tasks, err := s.taskRepo.FindByWorkflow(wf.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow tasks: %w", err)
	}

	statuses := make([]statemachine.TaskStatus, 0, len(tasks))
	completed := 0
	for _, t := range tasks {
		status := statemachine.TaskStatus(t.Status)
		if status == statemachine.TaskCompleted {
			completed++
		}
		statuses = append(statuses, status)
	}

	return &WorkflowDetail{
		Workflow:       wf,
		View:           statemachine.NewStatusView(statemachine.WorkflowStatus(wf.Status), statuses),
		TotalTasks:     len(tasks),
		CompletedTasks: completed,
	}, nil
}

// List 查询工作流列表
func (s *workflowService) List(filter *WorkflowListFilter) (*WorkflowListResponse, error) {
	if filter == nil {
		filter = &WorkflowListFilter{}
	}
	if filter.Status != nil {
		if _, err := statemachine.ParseWorkflowStatus(*filter.Status); err != nil {
			return nil, withDetail(ErrInvalidStatus, "%q", *filter.Status)
		}
	}

	workflows, total, err := s.workflowRepo.FindByFilter(&repository.WorkflowFilter{
		Status:     filter.Status,
		CreatedBy:  filter.CreatedBy,
		DocumentID: filter.DocumentID,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	details := make([]*WorkflowDetail, 0, len(workflows))
	for _, wf := range workflows {
		d, err := s.detail(wf)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}

	return &WorkflowListResponse{
		Data:       details,
		Pagination: newPagination(filter.Page, filter.PageSize, total),
	}, nil
}

// canModify 判断操作用户能否修改工作流: 具备管理能力或为创建人
func canModify(actor auth.Actor, wf *model.WorkflowModel) bool {
	return auth.CanManageWorkflows(actor.Role) || actor.UserID == wf.CreatedBy
}

// Update 更新工作流基本信息
func (s *workflowService) Update(ctx context.Context, id string, req *UpdateWorkflowRequest) (*model.WorkflowModel, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidInput("request is required")
	}

	// 1. 先校验全部字段, 不做部分写入
	if req.Name != nil {
		if err := utils.ValidateName(strings.TrimSpace(*req.Name)); err != nil {
			return nil, invalidInput("name: %v", err)
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

	var updated *model.WorkflowModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.workflowRepo.WithTx(tx)
		wf, err := repo.FindByIDForUpdate(id)
		if err != nil {
			return notFoundOr(err, ErrWorkflowNotFound, "failed to lock workflow")
		}
		if !canModify(actor, wf) {
			return withDetail(ErrPermissionDenied, "cannot update workflow %s", id)
		}

		if req.Name != nil {
			wf.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			wf.Description = *req.Description
		}
		if req.DueDate != nil {
			wf.DueDate = req.DueDate
		}
		if req.Priority != nil {
			wf.Priority = string(priority)
		}
		if req.DocumentID != nil {
			wf.DocumentID = *req.DocumentID
		}
		wf.UpdatedAt = time.Now()

		if err := repo.Save(wf); err != nil {
			return fmt.Errorf("failed to update workflow: %w", err)
		}
		updated = wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logRecorder.Record(ctx, id, "Workflow details updated")
	return updated, nil
}

// SetStatus 设置工作流状态
func (s *workflowService) SetStatus(ctx context.Context, id string, status string) (result *model.WorkflowModel, err error) {
	ctx, span := startSpan(ctx, "WorkflowService.SetStatus")
	span.SetAttributes(attribute.String("workflow.id", id), attribute.String("workflow.status", status))
	defer func() { endSpan(span, err) }()

	// 1. 校验状态值和权限
	to, err := statemachine.ParseWorkflowStatus(status)
	if err != nil {
		return nil, withDetail(ErrInvalidStatus, "%q", status)
	}
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	// 2. 锁定工作流行并迁移状态
	var from statemachine.WorkflowStatus
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.workflowRepo.WithTx(tx)
		wf, err := repo.FindByIDForUpdate(id)
		if err != nil {
			return notFoundOr(err, ErrWorkflowNotFound, "failed to lock workflow")
		}
		if !canModify(actor, wf) {
			return withDetail(ErrPermissionDenied, "cannot change status of workflow %s", id)
		}

		from = statemachine.WorkflowStatus(wf.Status)
		if err := statemachine.ValidateWorkflowTransition(from, to); err != nil {
			return withDetail(ErrInvalidTransition, "%s -> %s", from, to)
		}
		if from != to {
			if err := repo.UpdateStatus(id, string(to)); err != nil {
				return fmt.Errorf("failed to update workflow status: %w", err)
			}
			wf.Status = string(to)
			wf.UpdatedAt = time.Now()
		}
		result = wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != to {
		metrics.RecordStatusTransition("workflow", string(to))
		s.logRecorder.Record(ctx, id, fmt.Sprintf("Workflow status changed from %s to %s", from, to))
	}

	// 3. 迁移到 completed 时同步归档; 状态已经提交, 归档失败单独返回
	if to == statemachine.WorkflowCompleted && s.archiveSvc != nil {
		if _, err := s.archiveSvc.AutoArchive(ctx, id); err != nil && !errors.Is(err, ErrAlreadyArchived) {
			s.logger.WithError(err).WithField("workflow_id", id).Error("automatic archival failed after completion")
			return result, fmt.Errorf("workflow status committed as completed but archival failed: %w", err)
		}
	}
	return result, nil
}

// Delete 删除工作流及其任务
func (s *workflowService) Delete(ctx context.Context, id string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	var removed int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.workflowRepo.WithTx(tx)
		wf, err := repo.FindByIDForUpdate(id)
		if err != nil {
			return notFoundOr(err, ErrWorkflowNotFound, "failed to lock workflow")
		}
		if !canModify(actor, wf) {
			return withDetail(ErrPermissionDenied, "cannot delete workflow %s", id)
		}

		removed, err = s.taskRepo.WithTx(tx).DeleteByWorkflow(id)
		if err != nil {
			return fmt.Errorf("failed to delete workflow tasks: %w", err)
		}
		if err := repo.Delete(id); err != nil {
			return notFoundOr(err, ErrWorkflowNotFound, "failed to delete workflow")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"workflow_id":   id,
		"tasks_removed": removed,
	}).Info("workflow deleted")
	return nil
}
