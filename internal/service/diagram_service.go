package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mautops/docflow-gin/internal/diagram"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"go.opentelemetry.io/otel/attribute"
)

// DiagramService 流程图服务接口
type DiagramService interface {
	// Graph 返回工作流当前任务的流程图结构
	Graph(ctx context.Context, workflowID string) (*diagram.Graph, error)
	// BPMN 返回带布局坐标的 BPMN XML 文档
	BPMN(ctx context.Context, workflowID string) ([]byte, error)
}

// diagramService 流程图服务实现
type diagramService struct {
	workflowRepo repository.WorkflowRepository
	taskRepo     repository.TaskRepository
}

// NewDiagramService 创建流程图服务
func NewDiagramService(workflowRepo repository.WorkflowRepository, taskRepo repository.TaskRepository) DiagramService {
	return &diagramService{workflowRepo: workflowRepo, taskRepo: taskRepo}
}

// Graph 生成流程图结构
func (s *diagramService) Graph(ctx context.Context, workflowID string) (*diagram.Graph, error) {
	_, g, err := s.synthesize(ctx, workflowID)
	return g, err
}

// BPMN 生成 BPMN XML
func (s *diagramService) BPMN(ctx context.Context, workflowID string) ([]byte, error) {
	wf, g, err := s.synthesize(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	out, err := diagram.EncodeBPMN(g, wf.ID, wf.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to encode diagram: %w", err)
	}
	metrics.RecordDiagramRendered()
	return out, nil
}

func (s *diagramService) synthesize(ctx context.Context, workflowID string) (wf *model.WorkflowModel, g *diagram.Graph, err error) {
	_, span := startSpan(ctx, "DiagramService.Synthesize")
	span.SetAttributes(attribute.String("workflow.id", workflowID))
	defer func() { endSpan(span, err) }()

	wf, err = s.workflowRepo.FindByID(workflowID)
	if err != nil {
		return nil, nil, notFoundOr(err, ErrWorkflowNotFound, "failed to get workflow")
	}
	tasks, err := s.taskRepo.FindByWorkflow(workflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load workflow tasks: %w", err)
	}

	inputs := make([]diagram.TaskInput, 0, len(tasks))
	for _, t := range tasks {
		inputs = append(inputs, diagram.TaskInput{
			ID:      t.ID,
			Title:   t.Title,
			Type:    statemachine.TaskType(t.Type),
			Status:  statemachine.TaskStatus(t.Status),
			DueDate: t.DueDate,
		})
	}

	g, err = diagram.Synthesize(inputs)
	if err != nil {
		if errors.Is(err, diagram.ErrNoTasksToRender) {
			return nil, nil, withDetail(ErrNoTasksToRender, "workflow %s", workflowID)
		}
		return nil, nil, fmt.Errorf("failed to synthesize diagram: %w", err)
	}
	span.SetAttributes(attribute.Int("diagram.nodes", len(g.Nodes)), attribute.Int("diagram.edges", len(g.Edges)))
	return wf, g, nil
}
