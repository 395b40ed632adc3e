package main

import (
	"log"
	"time"

	"orbit_social/config"
	"orbit_social/handler"
	"orbit_social/middleware"
	"orbit_social/model"
	"orbit_social/service"
	"orbit_social/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	// 服务端统一使用 UTC
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

	if err := utils.GetDB().AutoMigrate(
		&model.User{},
		&model.Post{},
		&model.Follow{},
		&model.FollowRequest{},
		&model.Block{},
		&model.Mute{},
		&model.Like{},
		&model.Retweet{},
		&model.Comment{},
		&model.Tip{},
		&model.Message{},
		&model.MessageRequest{},
		&model.Notification{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化 Redis
	if err := utils.InitRedis(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer utils.CloseRedis()

	// 初始化认证中间件
	middleware.InitAuth(cfg.JWTSecret)

	// 组装核心服务
	// Hub 在这里显式构造并注入，进程内只有这一个推送器实例
	guard := service.NewVisibilityGuard(utils.GetDB())
	notifSvc := service.NewNotificationService(utils.GetDB(), guard)
	relSvc := service.NewRelationshipService(utils.GetDB(), guard)
	interactionSvc := service.NewInteractionService(utils.GetDB(), guard)
	msgSvc := service.NewMessageService(utils.GetDB(), guard, relSvc)

	hub := handler.NewHub(utils.GetRedis())
	hub.StartPubSub()
	defer hub.StopPubSub()

	notifSvc.SetBroadcaster(hub)
	relSvc.SetNotificationService(notifSvc)
	interactionSvc.SetNotificationService(notifSvc)
	msgSvc.SetNotificationService(notifSvc)

	// 创建处理器
	relHandler := handler.NewRelationshipHandler(relSvc)
	interactionHandler := handler.NewInteractionHandler(interactionSvc)
	msgHandler := handler.NewMessageHandler(msgSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc)

	// 创建 Gin 路由
	r := gin.Default()

	// 注册统一错误处理中间件
	r.Use(middleware.ErrorHandlerMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{"status": "ok"})
	})

	// WebSocket 连接（使用 token 认证，不需要 HTTP 中间件）
	r.GET("/ws", handler.HandleWebSocket(hub))

	// HTTP API 路由组（需要认证）
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	{
		// 关注关系
		api.POST("/relationships/follow", relHandler.Follow)
		api.POST("/relationships/unfollow", relHandler.Unfollow)
		api.GET("/relationships/follow-requests", relHandler.ListFollowRequests)
		api.POST("/relationships/follow-requests/:id/respond", relHandler.RespondToFollowRequest)

		// 拉黑 / 静音
		api.POST("/relationships/block", relHandler.Block)
		api.POST("/relationships/unblock", relHandler.Unblock)
		api.GET("/relationships/blocked", relHandler.ListBlockedUsers)
		api.POST("/relationships/mute", relHandler.Mute)
		api.POST("/relationships/unmute", relHandler.Unmute)

		// 粉丝 / 关注列表
		api.GET("/users/:id/followers", relHandler.ListFollowers)
		api.GET("/users/:id/following", relHandler.ListFollowing)

		// 帖子互动
		api.POST("/posts/:id/like", interactionHandler.ToggleLike)
		api.POST("/posts/:id/retweet", interactionHandler.Retweet)
		api.POST("/posts/:id/unretweet", interactionHandler.Unretweet)
		api.POST("/posts/:id/comments", interactionHandler.AddComment)
		api.GET("/posts/:id/likers", interactionHandler.ListLikers)

		// 打赏
		api.POST("/tips", interactionHandler.Tip)

		// 私信
		api.POST("/messages", msgHandler.SendMessage)
		api.GET("/messages/:id", msgHandler.ListMessages)
		api.GET("/message-requests", msgHandler.ListMessageRequests)
		api.POST("/message-requests/:id/respond", msgHandler.RespondToMessageRequest)

		// 通知
		api.GET("/notifications", notifHandler.GetNotifications)
		api.POST("/notifications/read-all", notifHandler.MarkAllAsRead)
		api.POST("/notifications/mentions", notifHandler.NotifyMentions)
		api.POST("/notifications/:id/delete", notifHandler.DeleteNotification)
	}

	// 计数器对账，把缓存计数和互动流水之间的漂移周期性拉平
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := interactionSvc.ReconcileAllCounters(500); err != nil {
				log.Printf("[WARN] Counter reconciliation pass failed: %v", err)
			}
		}
	}()

	// 启动服务
	log.Printf("orbit_social service starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
