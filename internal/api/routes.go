package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"poll_web/internal/api/handlers"
	"poll_web/internal/repository"
	"poll_web/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services, repos *repository.Repositories) {
	// 初始化 handlers
	roomHandler := handlers.NewRoomHandler(services.Room, services.Poll)
	templateHandler := handlers.NewTemplateHandler(repos.Template)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocketManager)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 基本的健康檢查
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// 即時連線入口
	api.GET("/ws", wsHandler.HandleWebSocket)

	// 投票房間相關
	rooms := api.Group("/rooms")
	{
		rooms.POST("", roomHandler.CreateRoom)                          // 創建房間
		rooms.GET("/:roomCode", roomHandler.GetRoom)                    // 獲取房間信息
		rooms.POST("/:roomCode/close", roomHandler.CloseRoom)           // 關閉房間
		rooms.GET("/:roomCode/history", roomHandler.GetPollHistory)     // 歷史題目
		rooms.GET("/:roomCode/report", roomHandler.GetParticipantReport) // 成績報表
	}

	// 題目匯出
	api.GET("/polls/:pollId/export", roomHandler.ExportPollCSV)

	// 題組範本相關
	templates := api.Group("/templates")
	{
		templates.GET("", templateHandler.ListTemplates)
		templates.POST("", templateHandler.SaveTemplate)
		templates.DELETE("/:id", templateHandler.DeleteTemplate)
	}
}
