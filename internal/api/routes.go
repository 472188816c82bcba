package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"collabboard/internal/api/handlers"
	"collabboard/internal/middleware"
	"collabboard/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services, redisClient *redis.Client) {
	// 初始化 handlers
	roomHandler := handlers.NewRoomHandler(services.Room)
	wsHandler := handlers.NewWebSocketHandler(services)

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Not found",
		})
	})

	// WebSocket 連接點不經過限流
	r.GET("/ws", wsHandler.HandleWebSocket)

	// REST 路由群組
	api := r.Group("/api")
	api.Use(middleware.RateLimit(redisClient, 20))
	{
		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})

		// 房間相關
		api.POST("/create-room", roomHandler.CreateRoom)
		api.GET("/public-rooms", roomHandler.ListPublicRooms)
		api.GET("/room/:roomId", roomHandler.GetRoom)
		api.PATCH("/room/:roomId", roomHandler.UpdateRoom)
		api.DELETE("/room/:roomId", roomHandler.DeleteRoom)
	}
}
