package main

import (
	"log"
	"time"

	"studybuddy/config"
	"studybuddy/handler"
	"studybuddy/middleware"
	"studybuddy/service"
	"studybuddy/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	// 设置时区为 UTC（推荐服务端统一使用 UTC）
	time.Local = time.UTC
}

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化数据库
	if err := utils.InitDB(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer utils.CloseDB()

	// 初始化 Redis
	if err := utils.InitRedis(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer utils.CloseRedis()

	// 初始化认证中间件
	middleware.InitAuth(cfg.JWTSecret)

	// 创建服务
	profileSvc := service.NewProfileService(utils.GetDB())
	matchSvc := service.NewMatchService(utils.GetDB(), profileSvc, cfg.MatchPageLimitMax)
	notifSvc := service.NewNotificationServiceWithRedis(utils.GetDB(), utils.GetRedis())
	milestoneSvc := service.NewMilestoneServiceWithRedis(
		utils.GetDB(), utils.GetRedis(),
		service.DefaultBadgeCatalog(),
		time.Duration(cfg.LeaderboardCacheTTL)*time.Second,
	)
	connSvc := service.NewConnectionService(utils.GetDB(), profileSvc)
	msgSvc := service.NewMessageService(utils.GetDB())
	checkInSvc := service.NewCheckInService(utils.GetDB())
	planSvc := service.NewStudyPlanService(utils.GetDB())
	healthSvc := service.NewHealthService(utils.GetDB())

	// 注入服务间依赖
	milestoneSvc.SetNotificationSink(notifSvc)
	profileSvc.SetMilestoneAwarder(milestoneSvc)
	connSvc.SetNotificationSink(notifSvc)
	connSvc.SetMilestoneAwarder(milestoneSvc)
	msgSvc.SetMilestoneAwarder(milestoneSvc)
	checkInSvc.SetMilestoneAwarder(milestoneSvc)
	checkInSvc.SetStreakUpdater(healthSvc)
	planSvc.SetMilestoneAwarder(milestoneSvc)
	healthSvc.SetMessageStats(msgSvc)
	healthSvc.SetCheckInStats(checkInSvc)
	healthSvc.SetPlanProgress(planSvc)
	healthSvc.SetMilestoneAwarder(milestoneSvc)
	healthSvc.SetNotificationSink(notifSvc)

	// 创建处理器
	profileHandler := handler.NewProfileHandler(profileSvc)
	matchHandler := handler.NewMatchHandler(matchSvc)
	connHandler := handler.NewConnectionHandler(connSvc)
	activityHandler := handler.NewActivityHandler(msgSvc, checkInSvc, planSvc)
	healthHandler := handler.NewHealthHandler(healthSvc, connSvc)
	milestoneHandler := handler.NewMilestoneHandler(milestoneSvc, cfg.LeaderboardSize)
	notifHandler := handler.NewNotificationHandler(notifSvc)

	// 创建 Gin 路由
	r := gin.Default()

	// 注册统一错误处理中间件
	r.Use(middleware.ErrorHandlerMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{"status": "ok"})
	})

	// HTTP API 路由组（需要认证）
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	{
		// 学习档案
		api.GET("/profile", profileHandler.GetProfile)
		api.PUT("/profile", profileHandler.UpsertProfile)

		// 搭档匹配
		api.GET("/matches", matchHandler.FindMatches)

		// 搭档关系生命周期
		api.POST("/connections", connHandler.CreateConnection)
		api.GET("/connections", connHandler.ListConnections)
		api.POST("/connections/:id/accept", connHandler.AcceptConnection)
		api.POST("/connections/:id/reject", connHandler.RejectConnection)
		api.DELETE("/connections/:id", connHandler.RemoveConnection)
		api.POST("/connections/block", connHandler.BlockUser)
		api.GET("/connections/status/:user_id", connHandler.GetPairStatus)

		// 消息 / 打卡 / 学习计划
		api.POST("/connections/:id/messages", activityHandler.SendMessage)
		api.GET("/connections/:id/messages", activityHandler.GetMessages)
		api.POST("/connections/:id/checkins", activityHandler.SubmitCheckIn)
		api.POST("/connections/:id/plans", activityHandler.CreatePlan)
		api.POST("/plans/:plan_id/items/:item_id", activityHandler.TogglePlanItem)

		// 关系健康度
		api.GET("/connections/:id/health", healthHandler.GetConnectionHealth)
		api.POST("/connections/:id/feedback", healthHandler.AddFeedback)
		api.POST("/connections/:id/alerts/:alert_id/ack", healthHandler.AcknowledgeAlert)
		api.GET("/health/at-risk", healthHandler.GetAtRiskConnections)

		// 成就与排行榜
		api.GET("/milestones", milestoneHandler.ListMilestones)
		api.POST("/milestones/:id/visibility", milestoneHandler.SetVisibility)
		api.GET("/leaderboard", milestoneHandler.GetLeaderboard)

		// 通知
		api.GET("/notifications", notifHandler.GetNotifications)
		api.POST("/notifications/read-all", notifHandler.MarkAllAsRead)
	}

	// 启动服务
	log.Printf("🚀 studybuddy service starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
