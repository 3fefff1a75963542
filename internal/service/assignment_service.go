package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/docflow-gin/internal/assignment"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/integration"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"github.com/mautops/docflow-gin/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errTaskClaimed 任务在规划和写入之间已被其他请求指派
var errTaskClaimed = errors.New("task already assigned by a concurrent run")

// AssignmentService 任务指派服务接口
type AssignmentService interface {
	// AssignAutomatically 按角色和负载自动指派工作流下未指派的任务
	AssignAutomatically(ctx context.Context, workflowID string) (*AssignmentResult, error)
	// Reassign 将任务重新指派给指定用户, 状态重置为 pending
	Reassign(ctx context.Context, workflowID, taskID string, req *ReassignRequest) (*model.TaskModel, error)
}

// ReassignRequest 重新指派请求
type ReassignRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
	Reason     string `json:"reason"`
}

// Assignment 一次成功的指派
type Assignment struct {
	TaskID       string `json:"task_id"`
	TaskTitle    string `json:"task_title"`
	AssigneeID   string `json:"assignee_id"`
	AssigneeName string `json:"assignee_name"`
	Pool         string `json:"pool"`
}

// AssignmentResult 自动指派结果
// 没有匹配候选人的任务保持未指派, 不出现在结果中
type AssignmentResult struct {
	Assignments []Assignment           `json:"assignments"`
	Failures    []BatchOperationResult `json:"failures,omitempty"`
}

// assignmentService 任务指派服务实现
type assignmentService struct {
	db           *gorm.DB
	workflowRepo repository.WorkflowRepository
	taskRepo     repository.TaskRepository
	loadIndex    UserLoadIndex
	logRecorder  WorkflowLogRecorder
	notifier     integration.NotificationDispatcher
	roles        assignment.RoleNames
	logger       logrus.FieldLogger
}

// NewAssignmentService 创建任务指派服务
func NewAssignmentService(
	db *gorm.DB,
	workflowRepo repository.WorkflowRepository,
	taskRepo repository.TaskRepository,
	loadIndex UserLoadIndex,
	logRecorder WorkflowLogRecorder,
	notifier integration.NotificationDispatcher,
	roles assignment.RoleNames,
	logger logrus.FieldLogger,
) AssignmentService {
	defaults := assignment.DefaultRoleNames()
	if roles.Director == "" {
		roles.Director = defaults.Director
	}
	if roles.Manager == "" {
		roles.Manager = defaults.Manager
	}
	if roles.Employee == "" {
		roles.Employee = defaults.Employee
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &assignmentService{
		db:           db,
		workflowRepo: workflowRepo,
		taskRepo:     taskRepo,
		loadIndex:    loadIndex,
		logRecorder:  logRecorder,
		notifier:     notifier,
		roles:        roles,
		logger:       logger,
	}
}

// AssignAutomatically 自动指派
func (s *assignmentService) AssignAutomatically(ctx context.Context, workflowID string) (result *AssignmentResult, err error) {
	ctx, span := startSpan(ctx, "AssignmentService.AssignAutomatically")
	span.SetAttributes(attribute.String("workflow.id", workflowID))
	defer func() { endSpan(span, err) }()

	if _, err := requireCapability(ctx, auth.CapAssignTasks); err != nil {
		return nil, err
	}
	if _, err := s.workflowRepo.FindByID(workflowID); err != nil {
		return nil, notFoundOr(err, ErrWorkflowNotFound, "failed to get workflow")
	}

	// 1. 读取未指派任务, 为空表示没有需要指派的任务
	tasks, err := s.taskRepo.FindUnassignedByWorkflow(workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unassigned tasks: %w", err)
	}
	result = &AssignmentResult{Assignments: []Assignment{}}
	if len(tasks) == 0 {
		return result, nil
	}

	// 2. 按负载构建角色池
	candidates, err := s.loadIndex.Candidates()
	if err != nil {
		return nil, err
	}
	pools := assignment.BuildPools(candidates, s.roles)

	pending := make([]assignment.PendingTask, 0, len(tasks))
	byID := make(map[string]*model.TaskModel, len(tasks))
	for _, t := range tasks {
		pending = append(pending, assignment.PendingTask{
			ID:    t.ID,
			Title: t.Title,
			Type:  statemachine.TaskType(t.Type),
		})
		byID[t.ID] = t
	}
	if err := assignment.CheckEligible(pools, pending); err != nil {
		return nil, withDetail(ErrNoEligibleAssignees, "%d pending tasks", len(pending))
	}

	// 3. 逐个任务决定并写入, 每个任务独立事务, 写入成功后才推进轮转
	planner := assignment.NewPlanner(pools)
	for _, p := range pending {
		decision, ok := planner.Decide(p)
		if !ok {
			s.logger.WithFields(logrus.Fields{
				"workflow_id": workflowID,
				"task_id":     p.ID,
			}).Debug("no candidate matches task, leaving unassigned")
			continue
		}

		if err := s.claim(p.ID, decision.Assignee.UserID); err != nil {
			result.Failures = append(result.Failures, BatchOperationResult{TaskID: p.ID, Error: err.Error()})
			s.logger.WithError(err).WithFields(logrus.Fields{
				"workflow_id": workflowID,
				"task_id":     p.ID,
			}).Warn("failed to assign task")
			continue
		}
		planner.Commit(decision)

		task := byID[p.ID]
		result.Assignments = append(result.Assignments, Assignment{
			TaskID:       task.ID,
			TaskTitle:    task.Title,
			AssigneeID:   decision.Assignee.UserID,
			AssigneeName: decision.Assignee.Name,
			Pool:         decision.Target.String(),
		})
		metrics.RecordTaskAssignment(decision.Target.String())
		s.logRecorder.Record(ctx, workflowID, fmt.Sprintf("Task %q assigned to %s", task.Title, decision.Assignee.UserID))
		notify(ctx, s.notifier, []string{decision.Assignee.UserID}, integration.Notification{
			Kind:       "assignment",
			WorkflowID: workflowID,
			TaskID:     task.ID,
			Message:    fmt.Sprintf("You have been assigned task %q", task.Title),
		})
	}

	span.SetAttributes(attribute.Int("assignment.count", len(result.Assignments)))
	return result, nil
}

// claim 在事务内重新确认任务仍未指派, 再以版本号比较交换写入
func (s *assignmentService) claim(taskID, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.taskRepo.WithTx(tx)
		task, err := repo.FindByIDForUpdate(taskID)
		if err != nil {
			return notFoundOr(err, ErrTaskNotFound, "failed to lock task")
		}
		if !task.IsUnassigned() || statemachine.TaskStatus(task.Status).IsTerminal() {
			return errTaskClaimed
		}

		claimed, err := repo.ClaimAssignment(task.ID, task.Version, []string{userID}, string(statemachine.TaskAssigned))
		if err != nil {
			return fmt.Errorf("failed to write assignment: %w", err)
		}
		if !claimed {
			return errTaskClaimed
		}
		return nil
	})
}

// Reassign 重新指派任务
func (s *assignmentService) Reassign(ctx context.Context, workflowID, taskID string, req *ReassignRequest) (*model.TaskModel, error) {
	actor, err := requireCapability(ctx, auth.CapReassignTasks)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidInput("request is required")
	}
	if err := utils.ValidateID(req.AssigneeID); err != nil {
		return nil, invalidInput("assignee_id: %v", err)
	}

	// 1. 校验任务归属和新指派人, 失败时不写任何日志
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, notFoundOr(err, withDetail(ErrTaskNotFound, "%s", taskID), "failed to get task")
	}
	if !task.BelongsTo(workflowID) {
		return nil, withDetail(ErrTaskNotFound, "%s in workflow %s", taskID, workflowID)
	}
	assignee, err := s.loadIndex.GetUser(req.AssigneeID)
	if err != nil {
		return nil, err
	}

	// 2. 覆盖指派集合, 状态重置为 pending, 追加备注
	var updated *model.TaskModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.taskRepo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(taskID)
		if err != nil {
			return notFoundOr(err, ErrTaskNotFound, "failed to lock task")
		}

		note := fmt.Sprintf("[%s] reassigned to %s by %s", time.Now().Format(time.RFC3339), assignee.ID, actor.UserID)
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			note += ": " + reason
		}
		if locked.AssignmentNote != "" {
			note = locked.AssignmentNote + "\n" + note
		}

		locked.AssignedTo = datatypes.JSONSlice[string]{assignee.ID}
		locked.Status = string(statemachine.TaskPending)
		locked.AssignmentNote = note
		locked.Version++
		locked.UpdatedAt = time.Now()
		if err := repo.Save(locked); err != nil {
			return fmt.Errorf("failed to reassign task: %w", err)
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTaskAssignment("reassign")
	s.logRecorder.Record(ctx, workflowID, fmt.Sprintf("Task %q reassigned to %s", updated.Title, assignee.ID))
	notify(ctx, s.notifier, []string{assignee.ID}, integration.Notification{
		Kind:       "reassignment",
		WorkflowID: workflowID,
		TaskID:     updated.ID,
		Message:    fmt.Sprintf("Task %q has been reassigned to you", updated.Title),
	})
	return updated, nil
}
