package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"poll_web/internal/api"
	"poll_web/internal/models"
	"poll_web/internal/repository"
	"poll_web/internal/service"
	"poll_web/internal/storage"
	"poll_web/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(&models.Room{}, &models.Poll{}, &models.Vote{},
		&models.ChatMessage{}, &models.Template{}); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos)

	// 恢復停機前進行中的投票（結束事件的消費端已在 NewServices 中啟動）
	if err := services.Poll.Initialize(); err != nil {
		log.Fatalf("Failed to restore poll state: %v", err)
	}

	// 啟動閒置房間 session 的背景清理
	services.Sessions.StartReaper(cfg.Session.ReapInterval, cfg.Session.IdleTTL)
	defer services.Sessions.StopReaper()

	// 設置 Gin 路由
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))
	api.SetupRoutes(r, services, repos)

	// 啟動伺服器
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
