package handler

import (
	"strconv"

	"studybuddy/middleware"
	"studybuddy/service"
	"studybuddy/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MilestoneHandler struct {
	milestoneSvc *service.MilestoneService
	defaultTopN  int
}

func NewMilestoneHandler(milestoneSvc *service.MilestoneService, defaultTopN int) *MilestoneHandler {
	if defaultTopN <= 0 {
		defaultTopN = 10
	}
	return &MilestoneHandler{milestoneSvc: milestoneSvc, defaultTopN: defaultTopN}
}

// ListMilestones 自己的成就列表
func (h *MilestoneHandler) ListMilestones(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	visibleOnly := c.Query("visible") == "true"
	milestones, err := h.milestoneSvc.ListMilestones(userID, visibleOnly)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	points, err := h.milestoneSvc.GetTotalPoints(userID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"milestones":   milestones,
		"total_points": points,
	})
}

// SetVisibility 更新成就可见性
func (h *MilestoneHandler) SetVisibility(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	milestoneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid milestone id")
		return
	}

	var req struct {
		Visible *bool `json:"visible" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.milestoneSvc.SetVisibility(userID, milestoneID, *req.Visible); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "visibility updated", nil)
}

// GetLeaderboard 积分排行榜
func (h *MilestoneHandler) GetLeaderboard(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.defaultTopN)))
	leaderboard, err := h.milestoneSvc.GetLeaderboard(limit, userID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, leaderboard)
}
