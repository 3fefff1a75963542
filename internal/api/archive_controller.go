package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/service"
)

// ArchiveController 归档控制器
type ArchiveController struct {
	archiveService service.ArchiveService
}

// NewArchiveController 创建归档控制器
func NewArchiveController(archiveService service.ArchiveService) *ArchiveController {
	return &ArchiveController{archiveService: archiveService}
}

// Archive 手动归档已完成的工作流
// @Summary      归档工作流
// @Tags         归档管理
// @Accept       json
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Param        request body service.ArchiveRequest false "验证报告"
// @Success      201  {object}  Response{data=ArchiveResponse}
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{id}/archive [post]
// @Security     BearerAuth
func (c *ArchiveController) Archive(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req service.ArchiveRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}

	archive, err := c.archiveService.Archive(ctx.Request.Context(), id, &req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	Created(ctx, newArchiveResponse(archive))
}

// List 查询归档列表
// @Summary      归档列表
// @Description  包含完成率和持续天数
// @Tags         归档管理
// @Produce      json
// @Success      200  {object}  Response{data=[]ArchiveResponse}
// @Router       /archives [get]
// @Security     BearerAuth
func (c *ArchiveController) List(ctx *gin.Context) {
	summaries, err := c.archiveService.ListArchives()
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	data := make([]*ArchiveResponse, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, newArchiveSummaryResponse(s))
	}
	Success(ctx, data)
}
