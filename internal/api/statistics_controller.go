package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/service"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statisticsService service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statisticsService service.StatisticsService) *StatisticsController {
	return &StatisticsController{statisticsService: statisticsService}
}

// Overview 工作流和任务概览
// @Summary      统计概览
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response{data=service.Overview}
// @Router       /statistics [get]
// @Security     BearerAuth
func (c *StatisticsController) Overview(ctx *gin.Context) {
	overview, err := c.statisticsService.GetOverview()
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	Success(ctx, overview)
}

// UserLoads 用户负载快照, 按累计会话时长升序
// @Summary      用户负载
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response{data=[]service.UserLoadSnapshot}
// @Router       /statistics/user-loads [get]
// @Security     BearerAuth
func (c *StatisticsController) UserLoads(ctx *gin.Context) {
	loads, err := c.statisticsService.GetUserLoads()
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	Success(ctx, loads)
}
