// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/internal/handler"
	"fortec-chat-go/internal/middleware"
	"fortec-chat-go/internal/repository"
	"fortec-chat-go/internal/service"
	"fortec-chat-go/pkg/database"
	"fortec-chat-go/pkg/es"
	"fortec-chat-go/pkg/kafka"
	"fortec-chat-go/pkg/llm"
	"fortec-chat-go/pkg/log"
	"fortec-chat-go/pkg/search"
	"fortec-chat-go/pkg/storage"
	"fortec-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("FORTEC_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	v := config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器，并监听日志级别的热更新
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")
	config.Watch(v, func(level string) {
		if err := log.SetLevel(level); err != nil {
			log.Warnw("忽略无效的日志级别", "level", level, "error", err)
			return
		}
		log.Infow("日志级别已更新", "level", level)
	})

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// 3. 用量账本：durable 使用 MySQL + Redis 看板缓存，否则全部在内存中
	var (
		ledger   service.UsageLedger
		recorder service.UsageRecorder
		cache    repository.SnapshotCache
		profiles repository.UserRepository
	)
	switch cfg.Ledger.Backend {
	case "durable":
		if err := database.InitMySQL(cfg.Database.MySQL.DSN); err != nil {
			log.Fatal("MySQL 初始化失败", err)
		}
		durable := service.NewDurableLedger(repository.NewUsageRepository(database.DB), cfg.Ledger.ReadTimeout, cfg.Ledger.SnapshotTimeout)
		ledger, recorder = durable, durable
		profiles = repository.NewUserRepository(database.DB)
	default:
		memory := service.NewMemoryLedger()
		ledger, recorder = memory, memory
	}
	if cfg.Database.Redis.Addr != "" {
		if err := database.InitRedis(bgCtx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB); err != nil {
			log.Fatal("Redis 初始化失败", err)
		}
		cache = repository.NewRedisSnapshotCache(database.RDB, cfg.Ledger.SnapshotCacheTTL)
	} else {
		cache = repository.NewMemorySnapshotCache(cfg.Ledger.SnapshotCacheTTL)
	}
	log.Infow("用量账本初始化成功", "backend", cfg.Ledger.Backend)

	// 4. 用量记账：启用 Kafka 时异步投递并由后台消费者写入账本
	var (
		tracker  service.UsageTracker
		producer *kafka.Producer
	)
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		tracker = service.NewKafkaTracker(producer, cfg.Ledger.ReadTimeout)
		go kafka.StartConsumer(bgCtx, cfg.Kafka, service.NewUsageEventHandler(recorder), database.RDB)
	} else {
		tracker = service.NewDirectTracker(ledger, cfg.Ledger.ReadTimeout)
	}

	// 5. 网页搜索：摘要服务或本地 Elasticsearch 索引
	var (
		provider search.Provider
		indexer  search.Indexer
	)
	if cfg.Elasticsearch.Addresses != "" {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Fatal("Elasticsearch 初始化失败", err)
		}
		indexer = search.NewElasticsearchIndexer(es.ESClient, cfg.Elasticsearch.IndexName)
	}
	switch cfg.Search.Provider {
	case "elasticsearch":
		if es.ESClient == nil {
			log.Fatalf("search.provider=elasticsearch 需要配置 elasticsearch.addresses")
		}
		provider = search.NewElasticsearchProvider(es.ESClient, cfg.Elasticsearch.IndexName, cfg.Search.MaxResults)
		indexer = nil
	default:
		provider = search.NewSnippetProvider(cfg.Search.URL)
	}

	// 6. 会话归档
	var transcripts repository.TranscriptRepository
	if cfg.MinIO.Enabled {
		if err := storage.InitMinIO(bgCtx, cfg.MinIO); err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		transcripts = repository.NewTranscriptRepository(storage.MinioClient, cfg.MinIO.BucketName)
	}

	// 7. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours)
	searchService := service.NewSearchService(provider, indexer, tracker, cfg.Search)
	completionService := service.NewCompletionService(
		llm.NewChatClient(cfg.LLM.Chat),
		llm.NewGenerateClient(cfg.LLM.Generate),
		llm.NewTextClient(cfg.LLM.Text),
		tracker,
	)
	dashboardService := service.NewDashboardService(ledger, cache)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit)
	completionHandler := handler.NewCompletionHandler(completionService, cfg.Identity)

	// 9. 注册路由
	api := r.Group("/api")
	api.Use(middleware.CookieIdentity(cfg.Identity))
	{
		api.GET("/models", completionHandler.ListModels)
		api.POST("/set-cookie", handler.NewIdentityHandler(jwtManager, profiles, cfg.Identity).SetCookie)
		api.GET("/dashboard", middleware.IdentityAuth(jwtManager), handler.NewDashboardHandler(dashboardService).GetDashboard)

		// 代理上游服务的接口按 IP 限流
		proxied := api.Group("")
		proxied.Use(limiter.Middleware())
		{
			proxied.POST("/chat", completionHandler.Complete)
			proxied.POST("/web-search", handler.NewSearchHandler(searchService).WebSearch)
		}
	}
	r.GET("/chat/ws", middleware.CookieIdentity(cfg.Identity), handler.NewChatHandler(searchService, completionService, transcripts, cfg.Chat).Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP 服务器关闭失败", err)
	}

	// 先等待已发出的记账完成，再关闭生产者和消费者
	tracker.Close()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("关闭 Kafka 生产者失败", err)
		}
	}
	stopBackground()
	log.Info("服务已优雅关闭")
}
