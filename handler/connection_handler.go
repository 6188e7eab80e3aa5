package handler

import (
	"studybuddy/middleware"
	"studybuddy/service"
	"studybuddy/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConnectionHandler struct {
	connSvc *service.ConnectionService
}

func NewConnectionHandler(connSvc *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connSvc: connSvc}
}

// CreateConnection 发起搭档请求
func (h *ConnectionHandler) CreateConnection(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
		Message    *string   `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	connection, err := h.connSvc.Create(userID, req.ReceiverID, req.Message)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "connection request sent", connection)
}

// ListConnections 查询自己的关系列表（可按 status 过滤）
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	connections, err := h.connSvc.ListConnections(userID, c.Query("status"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"connections": connections})
}

// AcceptConnection 接受请求
func (h *ConnectionHandler) AcceptConnection(c *gin.Context) {
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

	connection, err := h.connSvc.Accept(connectionID, userID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "connection accepted", connection)
}

// RejectConnection 拒绝请求
func (h *ConnectionHandler) RejectConnection(c *gin.Context) {
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
		Reason *string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req) // body 可选

	connection, err := h.connSvc.Reject(connectionID, userID, req.Reason)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "connection rejected", connection)
}

// RemoveConnection 解除搭档关系
func (h *ConnectionHandler) RemoveConnection(c *gin.Context) {
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

	if err := h.connSvc.Remove(connectionID, userID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "connection removed", nil)
}

// BlockUser 拉黑用户
func (h *ConnectionHandler) BlockUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		TargetUserID uuid.UUID `json:"target_user_id" binding:"required"`
		Reason       *string   `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if _, err := h.connSvc.Block(userID, req.TargetUserID, req.Reason); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessWithMessage(c, "user blocked successfully", nil)
}

// GetPairStatus 查询与某用户的关系状态（是否拉黑 / 是否已连接）
func (h *ConnectionHandler) GetPairStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		utils.BadRequest(c, "invalid user id")
		return
	}

	blocked, err := h.connSvc.IsBlocked(userID, targetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	connected, err := h.connSvc.AreConnected(userID, targetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"is_blocked":    blocked,
		"are_connected": connected,
	})
}
