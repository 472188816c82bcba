package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collabboard/internal/api"
	"collabboard/internal/models"
	"collabboard/internal/repository"
	"collabboard/internal/service"
	"collabboard/internal/storage"
	"collabboard/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(cfg.DB)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(&models.Room{}); err != nil {
		logrus.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 初始化 Redis，供 API 限流使用
	redisClient, err := storage.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logrus.Fatalf("Failed to initialize redis: %v", err)
	}
	defer redisClient.Close()

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos)

	// 設置 Gin 路由
	r := gin.Default()
	api.SetupRoutes(r, services, redisClient)

	// 啟動伺服器
	logrus.WithField("address", cfg.Server.Address).Info("starting server")
	if err := r.Run(cfg.Server.Address); err != nil {
		logrus.Fatalf("Failed to run server: %v", err)
	}
}
