package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"widget-backend/internal/config"
	"widget-backend/internal/credential"
	"widget-backend/internal/handler"
	"widget-backend/internal/imagegen"
	"widget-backend/internal/middleware"
	"widget-backend/internal/model"
	"widget-backend/internal/service"
	"widget-backend/internal/storage"
	"widget-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// 凭证存储
	kv, err := storage.New(cfg.Credential.Store, cfg.Credential.Path)
	if err != nil {
		logger.Fatalf("Failed to create credential store: %v", err)
	}
	if err := kv.Init(); err != nil {
		logger.Errorf("Failed to initialize %s credential store, falling back to memory: %v", cfg.Credential.Store, err)
		kv = storage.NewMemoryStore()
		if err := kv.Init(); err != nil {
			logger.Fatalf("Failed to initialize memory credential store: %v", err)
		}
	}
	defer kv.Close()

	factory, err := model.NewCompleterFactory(cfg)
	if err != nil {
		logger.Fatalf("Failed to create completer factory: %v", err)
	}

	holder, err := credential.New(kv, cfg.Credential.Key, cfg.Credential.Remember, factory)
	if err != nil {
		logger.Fatalf("Failed to load credential: %v", err)
	}
	// 没有持久化的凭证时，使用提供方环境变量预置
	if holder.Value() == "" {
		if key := cfg.DefaultCredential(); key != "" {
			if err := holder.SetCredential(key); err != nil {
				logger.Warnf("Failed to seed credential from environment: %v", err)
			}
		}
	}
	logger.Infof("Credential: %s (remember=%v)", holder.Masked(), holder.Remember())

	images, err := imagegen.New(cfg, holder)
	if err != nil {
		logger.Fatalf("Failed to create image generator: %v", err)
	}
	if closer, ok := images.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// 初始化服务
	settings := service.NewSettings(cfg.Model.Name)
	sessions := service.NewSessionManager(cfg, holder, images, settings)
	defer sessions.Close()

	// 初始化处理器
	widgetHandler := handler.NewWidgetHandler(sessions)
	credentialHandler := handler.NewCredentialHandler(holder)
	settingsHandler := handler.NewSettingsHandler(settings, cfg.Model.Provider, cfg.Image.Provider)

	// 创建路由
	router := setupRouter(cfg, widgetHandler, credentialHandler, settingsHandler)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 启动服务器
	go func() {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}

func setupRouter(cfg *config.Config, widgetHandler *handler.WidgetHandler, credentialHandler *handler.CredentialHandler, settingsHandler *handler.SettingsHandler) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS配置
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// API路由
	api := router.Group("/api")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.NewRateLimiter(cfg.RateLimit).Middleware())
	}
	handler.RegisterRoutes(api, widgetHandler, credentialHandler, settingsHandler)

	return router
}
