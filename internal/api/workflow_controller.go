package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/service"
	"github.com/mautops/docflow-gin/internal/utils"
)

// WorkflowController 工作流控制器
type WorkflowController struct {
	workflowService   service.WorkflowService
	taskService       service.TaskService
	assignmentService service.AssignmentService
	generationService service.GenerationService
	diagramService    service.DiagramService
	logRecorder       service.WorkflowLogRecorder
}

// NewWorkflowController 创建工作流控制器
func NewWorkflowController(
	workflowService service.WorkflowService,
	taskService service.TaskService,
	assignmentService service.AssignmentService,
	generationService service.GenerationService,
	diagramService service.DiagramService,
	logRecorder service.WorkflowLogRecorder,
) *WorkflowController {
	return &WorkflowController{
		workflowService:   workflowService,
		taskService:       taskService,
		assignmentService: assignmentService,
		generationService: generationService,
		diagramService:    diagramService,
		logRecorder:       logRecorder,
	}
}

// validateID 验证路径中的 ID, 无效时直接响应
func validateID(ctx *gin.Context, param string) (string, bool) {
	id := ctx.Param(param)
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid "+param, err.Error())
		return "", false
	}
	return id, true
}

// queryInt 读取整数查询参数, 缺省或非法时返回默认值
func queryInt(ctx *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(ctx.Query(key))
	if err != nil {
		return def
	}
	return v
}

// queryString 读取可选字符串查询参数
func queryString(ctx *gin.Context, key string) *string {
	v, ok := ctx.GetQuery(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}

// Create 创建工作流
// @Summary      创建工作流
// @Tags         工作流管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateWorkflowRequest true "工作流信息"
// @Success      201  {object}  Response{data=WorkflowResponse}
// @Failure      400  {object}  ErrorResponse
// @Router       /workflows [post]
// @Security     BearerAuth
func (c *WorkflowController) Create(ctx *gin.Context) {
	var req service.CreateWorkflowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	wf, err := c.workflowService.Create(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Created(ctx, newWorkflowResponse(wf))
}

// List 查询工作流列表
// @Summary      查询工作流列表
// @Tags         工作流管理
// @Produce      json
// @Param        status      query  string  false  "持久化状态"
// @Param        created_by  query  string  false  "创建人"
// @Param        document_id query  string  false  "关联文档"
// @Param        page        query  int     false  "页码"
// @Param        page_size   query  int     false  "每页数量"
// @Success      200  {object}  PaginatedResponse{data=[]WorkflowResponse}
// @Router       /workflows [get]
// @Security     BearerAuth
func (c *WorkflowController) List(ctx *gin.Context) {
	result, err := c.workflowService.List(&service.WorkflowListFilter{
		Status:     queryString(ctx, "status"),
		CreatedBy:  queryString(ctx, "created_by"),
		DocumentID: queryString(ctx, "document_id"),
		Page:       queryInt(ctx, "page", 1),
		PageSize:   queryInt(ctx, "page_size", 20),
	})
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	data := make([]*WorkflowResponse, 0, len(result.Data))
	for _, d := range result.Data {
		data = append(data, newWorkflowDetailResponse(d))
	}
	Paginated(ctx, data, result.Pagination)
}

// Get 获取工作流详情
// @Summary      获取工作流详情
// @Description  同时返回持久化状态和根据任务推导的状态
// @Tags         工作流管理
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Success      200  {object}  Response{data=WorkflowResponse}
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [get]
// @Security     BearerAuth
func (c *WorkflowController) Get(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	detail, err := c.workflowService.Get(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newWorkflowDetailResponse(detail))
}

// Update 更新工作流
// @Summary      更新工作流
// @Tags         工作流管理
// @Accept       json
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Param        request body service.UpdateWorkflowRequest true "更新内容"
// @Success      200  {object}  Response{data=WorkflowResponse}
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [put]
// @Security     BearerAuth
func (c *WorkflowController) Update(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateWorkflowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	wf, err := c.workflowService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newWorkflowResponse(wf))
}

// Delete 删除工作流及其任务
// @Summary      删除工作流
// @Tags         工作流管理
// @Param        id path string true "工作流 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [delete]
// @Security     BearerAuth
func (c *WorkflowController) Delete(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	if err := c.workflowService.Delete(ctx.Request.Context(), id); err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// SetStatus 设置工作流状态
// @Summary      设置工作流状态
// @Description  迁移到 completed 时同步归档
// @Tags         工作流管理
// @Accept       json
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Param        request body StatusRequest true "目标状态"
// @Success      200  {object}  Response{data=WorkflowResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{id}/status [post]
// @Security     BearerAuth
func (c *WorkflowController) SetStatus(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	wf, err := c.workflowService.SetStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newWorkflowResponse(wf))
}

// AddTask 向工作流手动添加任务
// @Summary      添加任务
// @Tags         工作流任务
// @Accept       json
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Param        request body service.CreateTaskRequest true "任务信息"
// @Success      201  {object}  Response{data=TaskResponse}
// @Router       /workflows/{id}/tasks [post]
// @Security     BearerAuth
func (c *WorkflowController) AddTask(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req service.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	req.WorkflowID = id

	task, err := c.taskService.Create(ctx.Request.Context(), &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Created(ctx, newTaskResponse(task))
}

// ListTasks 按创建顺序列出工作流任务
// @Summary      工作流任务列表
// @Tags         工作流任务
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Success      200  {object}  Response{data=[]TaskResponse}
// @Router       /workflows/{id}/tasks [get]
// @Security     BearerAuth
func (c *WorkflowController) ListTasks(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	tasks, err := c.taskService.ListByWorkflow(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newTaskResponses(tasks))
}

// GenerateTasks 通过外部生成服务生成任务
// @Summary      生成任务
// @Tags         工作流任务
// @Accept       json
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Param        request body service.GenerateTasksRequest true "生成提示"
// @Success      201  {object}  Response{data=[]TaskResponse}
// @Failure      502  {object}  ErrorResponse
// @Router       /workflows/{id}/tasks/generate [post]
// @Security     BearerAuth
func (c *WorkflowController) GenerateTasks(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req service.GenerateTasksRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	tasks, err := c.generationService.GenerateTasks(ctx.Request.Context(), id, &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Created(ctx, newTaskResponses(tasks))
}

// AssignTasks 自动分配未指派的任务
// @Summary      自动分配任务
// @Tags         工作流任务
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Success      200  {object}  Response{data=service.AssignmentResult}
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{id}/tasks/assign [post]
// @Security     BearerAuth
func (c *WorkflowController) AssignTasks(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.assignmentService.AssignAutomatically(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, result)
}

// ReassignTask 重新指派任务
// @Summary      重新指派任务
// @Tags         工作流任务
// @Accept       json
// @Produce      json
// @Param        id     path string true "工作流 ID"
// @Param        taskId path string true "任务 ID"
// @Param        request body service.ReassignRequest true "新指派人"
// @Success      200  {object}  Response{data=TaskResponse}
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/tasks/{taskId}/reassign [post]
// @Security     BearerAuth
func (c *WorkflowController) ReassignTask(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}
	taskID, ok := validateID(ctx, "taskId")
	if !ok {
		return
	}

	var req service.ReassignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.assignmentService.Reassign(ctx.Request.Context(), id, taskID, &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Success(ctx, newTaskResponse(task))
}

// Diagram 生成流程图
// @Summary      流程图
// @Description  默认返回 BPMN 2.0 XML, format=json 时返回节点和连线
// @Tags         工作流管理
// @Produce      xml
// @Produce      json
// @Param        id     path  string true  "工作流 ID"
// @Param        format query string false "xml 或 json"
// @Success      200
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{id}/diagram [get]
// @Security     BearerAuth
func (c *WorkflowController) Diagram(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	if ctx.Query("format") == "json" {
		g, err := c.diagramService.Graph(ctx.Request.Context(), id)
		if err != nil {
			respondServiceError(ctx, err)
			return
		}
		Success(ctx, newGraphResponse(g))
		return
	}

	doc, err := c.diagramService.BPMN(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	XML(ctx, doc)
}

// Logs 查询工作流日志
// @Summary      工作流日志
// @Tags         工作流管理
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Success      200  {object}  Response{data=[]WorkflowLogResponse}
// @Router       /workflows/{id}/logs [get]
// @Security     BearerAuth
func (c *WorkflowController) Logs(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	if _, err := c.workflowService.Get(id); err != nil {
		respondServiceError(ctx, err)
		return
	}

	logs, err := c.logRecorder.List(id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	data := make([]WorkflowLogResponse, 0, len(logs))
	for _, l := range logs {
		data = append(data, WorkflowLogResponse{
			ID:        l.ID,
			Message:   l.Message,
			CreatedAt: l.CreatedAt,
		})
	}
	Success(ctx, data)
}
