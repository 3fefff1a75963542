package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/service"
)

// TaskController 任务控制器
type TaskController struct {
	taskService service.TaskService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// Create 创建独立任务
// @Summary      创建任务
// @Description  workflow_id 为空时创建不属于任何工作流的独立任务
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTaskRequest true "任务信息"
// @Success      201  {object}  Response{data=TaskResponse}
// @Failure      400  {object}  ErrorResponse
// @Router       /tasks [post]
// @Security     BearerAuth
func (c *TaskController) Create(ctx *gin.Context) {
	var req service.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.taskService.Create(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Created(ctx, newTaskResponse(task))
}

// List 查询任务列表
// @Summary      查询任务列表
// @Tags         任务管理
// @Produce      json
// @Param        workflow_id     query  string  false  "工作流 ID"
// @Param        standalone      query  bool    false  "只查询独立任务"
// @Param        status          query  string  false  "状态"
// @Param        type            query  string  false  "类型"
// @Param        priority        query  string  false  "优先级"
// @Param        assignee        query  string  false  "指派人"
// @Param        unassigned      query  bool    false  "只查询未指派任务"
// @Param        due_before      query  string  false  "截止时间上限 (RFC3339)"
// @Param        page            query  int     false  "页码"
// @Param        page_size       query  int     false  "每页数量"
// @Param        sort_by         query  string  false  "排序字段"
// @Param        order           query  string  false  "asc 或 desc"
// @Success      200  {object}  PaginatedResponse{data=[]TaskResponse}
// @Failure      400  {object}  ErrorResponse
// @Router       /tasks [get]
// @Security     BearerAuth
func (c *TaskController) List(ctx *gin.Context) {
	filter := &service.TaskListFilter{
		WorkflowID: queryString(ctx, "workflow_id"),
		Status:     queryString(ctx, "status"),
		Type:       queryString(ctx, "type"),
		Priority:   queryString(ctx, "priority"),
		Assignee:   queryString(ctx, "assignee"),
		Page:       queryInt(ctx, "page", 1),
		PageSize:   queryInt(ctx, "page_size", 20),
		SortBy:     ctx.Query("sort_by"),
		SortOrder:  ctx.DefaultQuery("order", "asc"),
	}
	filter.StandaloneOnly, _ = strconv.ParseBool(ctx.Query("standalone"))
	filter.UnassignedOnly, _ = strconv.ParseBool(ctx.Query("unassigned"))

	if v := ctx.Query("due_before"); v != "" {
		dueBefore, err := time.Parse(time.RFC3339, v)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid due_before", err.Error())
			return
		}
		filter.DueBefore = &dueBefore
	}

	result, err := c.taskService.List(filter)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Paginated(ctx, newTaskResponses(result.Data), result.Pagination)
}

// Get 获取任务
// @Summary      获取任务详情
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response{data=TaskResponse}
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
// @Security     BearerAuth
func (c *TaskController) Get(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	task, err := c.taskService.Get(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newTaskResponse(task))
}

// Update 更新任务
// @Summary      更新任务
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.UpdateTaskRequest true "更新内容"
// @Success      200  {object}  Response{data=TaskResponse}
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [put]
// @Security     BearerAuth
func (c *TaskController) Update(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.taskService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newTaskResponse(task))
}

// SetStatus 推进任务状态
// @Summary      设置任务状态
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body StatusRequest true "目标状态"
// @Success      200  {object}  Response{data=TaskResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/status [post]
// @Security     BearerAuth
func (c *TaskController) SetStatus(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.taskService.SetStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newTaskResponse(task))
}

// Delete 删除任务
// @Summary      删除任务
// @Tags         任务管理
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [delete]
// @Security     BearerAuth
func (c *TaskController) Delete(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	if err := c.taskService.Delete(ctx.Request.Context(), id); err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, nil)
}
