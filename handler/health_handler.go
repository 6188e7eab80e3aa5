package handler

import (
	"studybuddy/middleware"
	"studybuddy/service"
	"studybuddy/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HealthHandler struct {
	healthSvc *service.HealthService
	connSvc   *service.ConnectionService
}

func NewHealthHandler(healthSvc *service.HealthService, connSvc *service.ConnectionService) *HealthHandler {
	return &HealthHandler{healthSvc: healthSvc, connSvc: connSvc}
}

// GetConnectionHealth 重算并返回关系健康度
func (h *HealthHandler) GetConnectionHealth(c *gin.Context) {
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

	// 只有关系双方能看健康度
	if _, err := h.connSvc.GetByID(connectionID, userID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	health, err := h.healthSvc.CalculateHealth(connectionID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, health)
}

// AddFeedback 对搭档关系提交反馈
func (h *HealthHandler) AddFeedback(c *gin.Context) {
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

	if _, err := h.connSvc.GetByID(connectionID, userID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req struct {
		Status         string `json:"status" binding:"required"`
		Note           string `json:"note"`
		SuggestRematch bool   `json:"suggest_rematch"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	health, err := h.healthSvc.AddFeedback(connectionID, userID, req.Status, req.Note, req.SuggestRematch)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "feedback recorded", health)
}

// AcknowledgeAlert 确认健康告警
func (h *HealthHandler) AcknowledgeAlert(c *gin.Context) {
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
	alertID, err := uuid.Parse(c.Param("alert_id"))
	if err != nil {
		utils.BadRequest(c, "invalid alert id")
		return
	}

	if _, err := h.connSvc.GetByID(connectionID, userID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	if err := h.healthSvc.AcknowledgeAlert(connectionID, alertID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "alert acknowledged", nil)
}

// GetAtRiskConnections 监控接口：所有 AT_RISK / INACTIVE 的关系
func (h *HealthHandler) GetAtRiskConnections(c *gin.Context) {
	if _, exists := middleware.GetUserID(c); !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	records, err := h.healthSvc.GetAtRiskConnections()
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"at_risk": records})
}
