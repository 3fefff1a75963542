package api

import (
	"time"

	"github.com/mautops/docflow-gin/internal/diagram"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/service"
)

// WorkflowResponse 工作流响应
type WorkflowResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Status          string     `json:"status"`
	PersistedStatus string     `json:"persisted_status,omitempty"`
	DerivedStatus   string     `json:"derived_status,omitempty"`
	Priority        string     `json:"priority"`
	CreatedBy       string     `json:"created_by"`
	DocumentID      string     `json:"document_id,omitempty"`
	TotalTasks      *int       `json:"total_tasks,omitempty"`
	CompletedTasks  *int       `json:"completed_tasks,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newWorkflowResponse(wf *model.WorkflowModel) *WorkflowResponse {
	return &WorkflowResponse{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		DueDate:     wf.DueDate,
		Status:      wf.Status,
		Priority:    wf.Priority,
		CreatedBy:   wf.CreatedBy,
		DocumentID:  wf.DocumentID,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}
}

func newWorkflowDetailResponse(d *service.WorkflowDetail) *WorkflowResponse {
	resp := newWorkflowResponse(d.Workflow)
	resp.PersistedStatus = string(d.View.PersistedStatus())
	resp.DerivedStatus = string(d.View.DerivedStatus())
	total, completed := d.TotalTasks, d.CompletedTasks
	resp.TotalTasks = &total
	resp.CompletedTasks = &completed
	return resp
}

// TaskResponse 任务响应
type TaskResponse struct {
	ID             string     `json:"id"`
	WorkflowID     *string    `json:"workflow_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	Type           string     `json:"type"`
	AssignedTo     []string   `json:"assigned_to"`
	AssignmentNote string     `json:"assignment_note,omitempty"`
	CreatedBy      string     `json:"created_by"`
	FileID         string     `json:"file_id,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newTaskResponse(t *model.TaskModel) *TaskResponse {
	assignees := []string(t.AssignedTo)
	if assignees == nil {
		assignees = []string{}
	}
	return &TaskResponse{
		ID:             t.ID,
		WorkflowID:     t.WorkflowID,
		Title:          t.Title,
		Description:    t.Description,
		DueDate:        t.DueDate,
		Priority:       t.Priority,
		Status:         t.Status,
		Type:           t.Type,
		AssignedTo:     assignees,
		AssignmentNote: t.AssignmentNote,
		CreatedBy:      t.CreatedBy,
		FileID:         t.FileID,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func newTaskResponses(tasks []*model.TaskModel) []*TaskResponse {
	out := make([]*TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskResponse(t))
	}
	return out
}

// ArchiveResponse 归档响应
type ArchiveResponse struct {
	ID                string    `json:"id"`
	WorkflowID        string    `json:"workflow_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	DocumentID        string    `json:"document_id,omitempty"`
	CreatedBy         string    `json:"created_by"`
	TotalTasks        int       `json:"total_tasks"`
	CompletedTasks    int       `json:"completed_tasks"`
	ValidationReport  string    `json:"validation_report"`
	WorkflowCreatedAt time.Time `json:"workflow_created_at"`
	CompletedAt       time.Time `json:"completed_at"`
	CompletionRate    *float64  `json:"completion_rate,omitempty"` // 百分比
	DurationDays      *int      `json:"duration_days,omitempty"`
}

func newArchiveResponse(a *model.WorkflowArchiveModel) *ArchiveResponse {
	return &ArchiveResponse{
		ID:                a.ID,
		WorkflowID:        a.WorkflowID,
		Name:              a.Name,
		Description:       a.Description,
		DocumentID:        a.DocumentID,
		CreatedBy:         a.CreatedBy,
		TotalTasks:        a.TotalTasks,
		CompletedTasks:    a.CompletedTasks,
		ValidationReport:  a.ValidationReport,
		WorkflowCreatedAt: a.WorkflowCreatedAt,
		CompletedAt:       a.CompletedAt,
	}
}

func newArchiveSummaryResponse(s *service.ArchiveSummary) *ArchiveResponse {
	resp := newArchiveResponse(s.WorkflowArchiveModel)
	rate, days := s.CompletionRate, s.DurationDays
	resp.CompletionRate = &rate
	resp.DurationDays = &days
	return resp
}

// WorkflowLogResponse 工作流日志响应
type WorkflowLogResponse struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphResponse 流程图 JSON 表示
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode 流程图节点
type GraphNode struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	TaskType string `json:"task_type,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// GraphEdge 流程图连线
type GraphEdge struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
	Default   bool   `json:"default,omitempty"`
}

func newGraphResponse(g *diagram.Graph) *GraphResponse {
	resp := &GraphResponse{
		Nodes: make([]GraphNode, 0, len(g.Nodes)),
		Edges: make([]GraphEdge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		resp.Nodes = append(resp.Nodes, GraphNode{
			ID:       n.ID,
			Kind:     string(n.Kind),
			Name:     n.Name,
			TaskType: string(n.TaskType),
			X:        n.Bounds.X,
			Y:        n.Bounds.Y,
			Width:    n.Bounds.Width,
			Height:   n.Bounds.Height,
		})
	}
	for _, e := range g.Edges {
		resp.Edges = append(resp.Edges, GraphEdge{
			ID:        e.ID,
			Source:    e.Source,
			Target:    e.Target,
			Condition: e.Condition,
			Default:   e.Default,
		})
	}
	return resp
}

// StatusRequest 状态变更请求
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}
