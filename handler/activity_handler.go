package handler

import (
	"strconv"

	"studybuddy/middleware"
	"studybuddy/service"
	"studybuddy/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActivityHandler 消息 / 打卡 / 学习计划入口
type ActivityHandler struct {
	msgSvc     *service.MessageService
	checkInSvc *service.CheckInService
	planSvc    *service.StudyPlanService
}

func NewActivityHandler(msgSvc *service.MessageService, checkInSvc *service.CheckInService, planSvc *service.StudyPlanService) *ActivityHandler {
	return &ActivityHandler{msgSvc: msgSvc, checkInSvc: checkInSvc, planSvc: planSvc}
}

// SendMessage 给搭档发消息
func (h *ActivityHandler) SendMessage(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid connection id")
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	message, err := h.msgSvc.SendMessage(connectionID, userID, req.Content)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, message)
}

// GetMessages 消息历史
func (h *ActivityHandler) GetMessages(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid connection id")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.msgSvc.GetMessages(connectionID, userID, limit, offset)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"messages": messages})
}

// SubmitCheckIn 当日打卡
func (h *ActivityHandler) SubmitCheckIn(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid connection id")
		return
	}

	var req struct {
		Note *string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req) // body 可选

	checkIn, err := h.checkInSvc.SubmitCheckIn(connectionID, userID, req.Note)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, checkIn)
}

// CreatePlan 创建学习计划
func (h *ActivityHandler) CreatePlan(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid connection id")
		return
	}

	var req struct {
		Title string   `json:"title" binding:"required"`
		Items []string `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	plan, err := h.planSvc.CreatePlan(connectionID, userID, req.Title, req.Items)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, plan)
}

// TogglePlanItem 勾选 / 取消勾选清单项
func (h *ActivityHandler) TogglePlanItem(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	planID, err := uuid.Parse(c.Param("plan_id"))
	if err != nil {
		utils.BadRequest(c, "invalid plan id")
		return
	}
	itemID, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		utils.BadRequest(c, "invalid item id")
		return
	}

	var req struct {
		Done *bool `json:"done" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	plan, err := h.planSvc.ToggleItem(planID, itemID, userID, *req.Done)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, plan)
}
