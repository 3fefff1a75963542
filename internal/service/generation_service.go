package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/docflow-gin/internal/assignment"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/integration"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"github.com/mautops/docflow-gin/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// maxGeneratedTasks 单次生成的任务数上限
const maxGeneratedTasks = 50

// GenerationService 任务生成服务接口
type GenerationService interface {
	// GenerateTasks 调用外部生成服务拆分任务, 重新分类类型后写入工作流
	GenerateTasks(ctx context.Context, workflowID string, req *GenerateTasksRequest) ([]*model.TaskModel, error)
}

// GenerateTasksRequest 生成任务请求
type GenerateTasksRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// GeneratedTask 生成服务返回的单个任务
// type 字段会被接受但不被信任, 类型总是根据标题重新推断
type GeneratedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueInDays   *int   `json:"due_in_days"`
	Type        string `json:"type"`
}

// generationService 任务生成服务实现
type generationService struct {
	db           *gorm.DB
	workflowRepo repository.WorkflowRepository
	taskRepo     repository.TaskRepository
	generator    integration.TaskGenerator
	logRecorder  WorkflowLogRecorder
	now          func() time.Time
}

// NewGenerationService 创建任务生成服务
func NewGenerationService(
	db *gorm.DB,
	workflowRepo repository.WorkflowRepository,
	taskRepo repository.TaskRepository,
	generator integration.TaskGenerator,
	logRecorder WorkflowLogRecorder,
) GenerationService {
	return &generationService{
		db:           db,
		workflowRepo: workflowRepo,
		taskRepo:     taskRepo,
		generator:    generator,
		logRecorder:  logRecorder,
		now:          time.Now,
	}
}

// GenerateTasks 生成任务
func (s *generationService) GenerateTasks(ctx context.Context, workflowID string, req *GenerateTasksRequest) (tasks []*model.TaskModel, err error) {
	ctx, span := startSpan(ctx, "GenerationService.GenerateTasks")
	span.SetAttributes(attribute.String("workflow.id", workflowID))
	defer func() { endSpan(span, err) }()

	actor, err := requireCapability(ctx, auth.CapGenerateTasks)
	if err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, invalidInput("prompt is required")
	}
	if _, err := s.workflowRepo.FindByID(workflowID); err != nil {
		return nil, notFoundOr(err, ErrWorkflowNotFound, "failed to get workflow")
	}

	// 1. 调用外部生成服务
	if s.generator == nil {
		return nil, withDetail(ErrGenerationFailed, "generator is not configured")
	}
	raw, err := s.generator.Generate(ctx, req.Prompt)
	if err != nil {
		metrics.RecordGeneratorRequest("error")
		return nil, withDetail(ErrGenerationFailed, "%v", err)
	}

	// 2. 严格解析输出
	items, err := ParseGeneratedTasks(raw)
	if err != nil {
		metrics.RecordGeneratorRequest("malformed")
		return nil, err
	}
	metrics.RecordGeneratorRequest("ok")

	// 3. 构建任务, 类型由标题重新推断
	now := s.now()
	tasks = make([]*model.TaskModel, 0, len(items))
	for i, item := range items {
		priority, _ := statemachine.ParsePriority(item.Priority)
		var due *time.Time
		if item.DueInDays != nil {
			d := now.AddDate(0, 0, *item.DueInDays)
			due = &d
		}
		wfID := workflowID
		// 递增创建时间, 保证任务按生成顺序排列
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		tasks = append(tasks, &model.TaskModel{
			ID:          uuid.New().String(),
			Title:       strings.TrimSpace(item.Title),
			Description: item.Description,
			DueDate:     due,
			Priority:    string(priority),
			Status:      string(statemachine.TaskPending),
			Type:        string(assignment.ClassifyTitle(item.Title)),
			WorkflowID:  &wfID,
			CreatedBy:   actor.UserID,
			Version:     1,
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		})
	}

	// 4. 一次性写入
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.taskRepo.WithTx(tx).CreateBatch(tasks)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist generated tasks: %w", err)
	}

	metrics.RecordTasksCreated("generator", len(tasks))
	s.logRecorder.Record(ctx, workflowID, fmt.Sprintf("%d tasks generated from prompt", len(tasks)))
	return tasks, nil
}

// ParseGeneratedTasks 将生成服务的输出解析为任务列表
// 输出必须是 JSON 数组, 可以包在 Markdown 代码块中; 出现未知字段或字段类型不符时拒绝
func ParseGeneratedTasks(raw string) ([]GeneratedTask, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, withDetail(ErrMalformedGeneratorOutput, "empty output")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var items []GeneratedTask
	if err := dec.Decode(&items); err != nil {
		return nil, withDetail(ErrMalformedGeneratorOutput, "%v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, withDetail(ErrMalformedGeneratorOutput, "unexpected trailing content")
	}

	if len(items) == 0 {
		return nil, withDetail(ErrMalformedGeneratorOutput, "no tasks")
	}
	if len(items) > maxGeneratedTasks {
		return nil, withDetail(ErrMalformedGeneratorOutput, "%d tasks exceed limit %d", len(items), maxGeneratedTasks)
	}

	for i, item := range items {
		if err := utils.ValidateName(item.Title); err != nil {
			return nil, withDetail(ErrMalformedGeneratorOutput, "item %d title: %v", i, err)
		}
		if _, ok := statemachine.ParsePriority(item.Priority); !ok {
			return nil, withDetail(ErrMalformedGeneratorOutput, "item %d priority %q", i, item.Priority)
		}
		if item.DueInDays != nil && *item.DueInDays < 0 {
			return nil, withDetail(ErrMalformedGeneratorOutput, "item %d due_in_days is negative", i)
		}
	}
	return items, nil
}

// stripCodeFence 去掉 ``` 代码块包裹
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
