package handler

import (
	"strconv"

	"studybuddy/middleware"
	"studybuddy/service"
	"studybuddy/utils"

	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	matchSvc *service.MatchService
}

func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

// FindMatches 查找候选搭档（按兼容性分数降序分页）
func (h *MatchHandler) FindMatches(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	filters := service.CandidateFilters{
		StudyLevel:       c.Query("level"),
		AvailabilityType: c.Query("availability"),
		PreferredMode:    c.Query("mode"),
	}

	result, err := h.matchSvc.FindMatches(userID, filters, page, limit)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}
