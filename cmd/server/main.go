// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"indi-radio-go/internal/config"
	"indi-radio-go/internal/handler"
	"indi-radio-go/internal/middleware"
	"indi-radio-go/internal/pipeline"
	"indi-radio-go/internal/repository"
	"indi-radio-go/internal/service"
	"indi-radio-go/pkg/database"
	"indi-radio-go/pkg/es"
	"indi-radio-go/pkg/kafka"
	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/storage"
	"indi-radio-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化存储依赖
	database.InitMySQL(cfg.Database.MySQL.DSN, database.PoolConfig{
		MaxIdleConns:    cfg.Database.MySQL.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MySQL.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.MySQL.ConnMaxLifetime,
	})
	if err := repository.AutoMigrate(database.DB); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)

	var catalog *es.CatalogIndex
	if cfg.Elasticsearch.Enabled {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Fatal("Elasticsearch 初始化失败", err)
		}
		catalog = es.NewCatalogIndex(es.ESClient, cfg.Elasticsearch.IndexName)
	}

	var publisher service.EventPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	tokenRepo := repository.NewTokenRepository(database.RDB)
	clipRepo := repository.NewAudioClipRepository(database.DB)
	scheduleRepo := repository.NewScheduleRepository(database.DB)

	// 5. 初始化 Service
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.Issuer)
	blobs := storage.NewMinIOStore(storage.MinioClient, cfg.MinIO.BucketName)
	urls := storage.NewURLResolver(cfg.MinIO.PublicPrefix(), cfg.MinIO.BucketName)

	userService := service.NewUserService(userRepo, tokenRepo, jwtManager)
	audioService := service.NewAudioService(clipRepo, userRepo, blobs, urls, publisher, cfg.Ingest.MaxPageSize)
	scheduleService := service.NewScheduleService(scheduleRepo, publisher, cfg.Ingest.InsertBatchSize, cfg.Ingest.MaxPageSize)
	var searcher service.CatalogSearcher
	if catalog != nil {
		searcher = catalog
	}
	searchService := service.NewSearchService(searcher)

	// 6. 启动后台目录索引消费者
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	if cfg.Kafka.Enabled && catalog != nil {
		go kafka.StartConsumer(bgCtx, cfg.Kafka, pipeline.NewProcessor(catalog), database.RDB)
	}

	// 6.1 导入种子排期文件（按外部 id 幂等）
	if cfg.Server.SeedDir != "" {
		go initSeedSchedules(bgCtx, cfg.Server.SeedDir, scheduleService)
	}

	// 7. 创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(middleware.RequestLogger(), middleware.Metrics(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	maxUpload := cfg.Ingest.MaxUploadMB << 20
	authMW := middleware.AuthMiddleware(jwtManager, tokenRepo)
	userHandler := handler.NewUserHandler(userService)
	audioHandler := handler.NewAudioHandler(audioService, maxUpload)
	scheduleHandler := handler.NewScheduleHandler(scheduleService, maxUpload)
	searchHandler := handler.NewSearchHandler(searchService)

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		users := apiV1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authed := users.Group("")
			authed.Use(authMW)
			{
				authed.GET("/me", userHandler.Me)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		clips := apiV1.Group("/audio-clips")
		clips.Use(authMW)
		{
			clips.POST("/upload", audioHandler.Upload)
			clips.GET("", audioHandler.List)
			clips.PATCH("/:id", audioHandler.Rename)
			clips.DELETE("/:id", audioHandler.Delete)
		}

		radio := apiV1.Group("/radio-data")
		radio.Use(authMW)
		{
			radio.POST("/upload", scheduleHandler.Upload)
			radio.GET("/channels", scheduleHandler.Channels)
			radio.GET("/dates", scheduleHandler.Dates)
			radio.GET("/epg/:date", scheduleHandler.EPG)
			radio.POST("/epg", scheduleHandler.SaveEPG)
			radio.GET("/:date", scheduleHandler.ByDate)
		}

		catalogGroup := apiV1.Group("/catalog")
		catalogGroup.Use(authMW)
		{
			catalogGroup.GET("/search", searchHandler.Search)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	cancelBg()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

// initSeedSchedules 按文件名顺序导入目录下的 *.json 排期文件。
// 已存在的外部 id 会被跳过，重复启动不会产生重复数据。
func initSeedSchedules(ctx context.Context, dir string, scheduleSvc service.ScheduleService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedSchedules: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		log.Warnf("initSeedSchedules: 遍历目录失败: %v", err)
		return
	}
	sort.Strings(files)

	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("initSeedSchedules: 读取文件失败: %s, err=%v", path, err)
			continue
		}
		report, err := scheduleSvc.Ingest(ctx, payload)
		if err != nil {
			log.Warnf("initSeedSchedules: 导入失败: %s, err=%v", path, err)
			continue
		}
		log.Infof("initSeedSchedules: %s 导入完成: inserted=%d, skipped=%d, errors=%d",
			filepath.Base(path), report.Inserted, report.Skipped, len(report.Errors))
	}
}
