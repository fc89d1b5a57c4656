package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "marketplace_chat_service/cmd/chat_service/docs" // swagger 文件
	"marketplace_chat_service/internal/chat/api/handlers"
	"marketplace_chat_service/internal/chat/api/router"
	"marketplace_chat_service/internal/chat/app"
	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/internal/chat/repository"
	"marketplace_chat_service/pkg/config"
	"marketplace_chat_service/pkg/database"
	"marketplace_chat_service/pkg/logger"
	testtool "marketplace_chat_service/pkg/test_tool"
	"marketplace_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	if err != nil {
		logger.Log.Fatal("load config failed", zap.Error(err))
	}
	cfg.ApplyDefaults()
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}
	if cfg.Auth.JWTSecret != "" {
		token.SetSecret(cfg.Auth.JWTSecret)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	testtool.StartPprof()

	// 1. metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(registry)

	// 2. 對話與訊息儲存
	gateway := newGateway(ctx, cfg)

	// 3. 額度
	plans := newPlanSource(cfg)
	gate := app.NewWeeklyQuotaGate(plans, gateway, app.QuotaConfig{
		Limit:          cfg.Limits.FreeWeekly,
		Window:         cfg.Limits.Window,
		UnlimitedPlans: cfg.Limits.UnlimitedPlans,
	}, metrics)

	// 4. 刪除失敗的補償佇列
	cleanupQueue := newCleanupQueue(cfg)
	engine := app.NewLifecycleEngine(gateway, cfg.Lifecycle.GracePeriod,
		app.WithCleanupScheduler(app.NewQueueCleanupScheduler(cleanupQueue)),
		app.WithLifecycleMetrics(metrics),
		app.WithDrainMarker(gateway),
	)
	defer engine.Stop()

	worker := app.NewCleanupWorker(cleanupQueue, engine, cfg.Cleanup.MaxAttempts, cfg.Cleanup.BaseBackoff, metrics)
	if err := worker.Start(ctx); err != nil {
		logger.Log.Fatal("start cleanup worker failed", zap.Error(err))
	}
	sweeper, err := app.NewSweeper(gateway, engine, cfg.Cleanup.SweepCron, cfg.Cleanup.IdleAfter)
	if err != nil {
		logger.Log.Fatal("invalid sweep schedule", zap.String("cron", cfg.Cleanup.SweepCron), zap.Error(err))
	}
	go sweeper.Run(ctx)

	// 5. 檢舉
	reportUC := app.NewReportUseCase(gateway, newReportRepository(cfg), newDocumentStore(cfg), newReportPublisher(cfg))
	conversationUC := app.NewConversationUseCase(gateway, gate, engine)

	sessions := app.NewSessionRouter(gateway, engine, metrics, app.RouterConfig{
		ErrorAcks:    *cfg.Websocket.ErrorAcks,
		EventRate:    cfg.Websocket.EventRate,
		EventBurst:   cfg.Websocket.EventBurst,
		WriteTimeout: cfg.Websocket.WriteTimeout,
	})

	// 6. grpc health
	if cfg.GRPCHealthPort != "" {
		grpcServer, healthServer, err := database.StartHealthServer(":"+cfg.GRPCHealthPort, config.EnvConfig.ChatService)
		if err != nil {
			logger.Log.Fatal("start grpc health server failed", zap.Error(err))
		}
		defer grpcServer.GracefulStop()
		healthServer.SetServingStatus(config.EnvConfig.ChatService, healthpb.HealthCheckResponse_SERVING)
		defer healthServer.Shutdown()
	}

	// 7. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r, router.Handlers{
		Conversation: handlers.NewConversationHandler(conversationUC, reportUC),
		Report:       handlers.NewReportHandler(reportUC),
		Websocket:    app.NewChatWebsocketHandler(sessions, cfg.Websocket.PingInterval),
		Gatherer:     registry,
	})

	go func() {
		port := ":" + cfg.Port
		logger.Log.Info("chat service listening", zap.String("port", port))
		if err := r.Listen(port); err != nil {
			logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down chat service")
	if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Log.Error("fiber shutdown", zap.Error(err))
	}
}

// newGateway mongo unless storage.driver is memory
func newGateway(ctx context.Context, cfg config.Chat) repository.Gateway {
	if cfg.Storage.Driver == "memory" {
		logger.Log.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryGateway(cfg.Lifecycle.MessageRetention)
	}

	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	if cfg.MongoSQL.User == "" {
		uri = fmt.Sprintf("mongodb://%s:%d", cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	}
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
			zap.Error(err),
		)
	}

	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	msgRepo := repository.NewMongoMessageRepository(mongo.Database, cfg.Lifecycle.MessageRetention)
	if err := convRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("create conversation indexes failed", zap.Error(err))
	}
	if err := msgRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("create message indexes failed", zap.Error(err))
	}
	return repository.NewMongoGateway(convRepo, msgRepo)
}

// newPlanSource billing postgres behind a redis cache; everybody is FREE without pg
func newPlanSource(cfg config.Chat) app.PlanSource {
	if cfg.Postgres.Host == "" {
		logger.Log.Warn("billing database not configured, every user is on the FREE plan")
		return repository.NewStaticPlanRepository(nil)
	}

	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    postgresURL(cfg.Postgres),
		RetryCount:    cfg.Postgres.RetryCount,
		RetryInterval: time.Duration(cfg.Postgres.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to billing database after retries", zap.Error(err))
	}
	plans := repository.NewPGPlanRepository(pool)

	masterName, sentinel := config.GetRedisSetting()
	if len(sentinel) == 0 && cfg.Redis.Addr == "" {
		return plans
	}
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.Addr, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	cache := database.NewRedisRepository[domain.PlanStatus](redisClient, "chat:plan:")
	return repository.NewCachedPlanRepository(plans, cache, cfg.Limits.PlanCacheTTL)
}

func newReportRepository(cfg config.Chat) repository.ReportRepository {
	if cfg.Postgres.Host == "" {
		return repository.NewMemoryReportRepository()
	}
	db, err := database.NewGormConnection(database.Connection{
		ConnectStr:    postgresURL(cfg.Postgres),
		RetryCount:    cfg.Postgres.RetryCount,
		RetryInterval: time.Duration(cfg.Postgres.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to open report database", zap.Error(err))
	}
	reports, err := repository.NewGormReportRepository(db)
	if err != nil {
		logger.Log.Fatal("migrate report table failed", zap.Error(err))
	}
	return reports
}

func newDocumentStore(cfg config.Chat) repository.DocumentStore {
	if cfg.MinIO.Endpoint == "" {
		return repository.NewMemoryDocumentStore()
	}
	client, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("connect minio failed", zap.Error(err))
	}
	return repository.NewMinIODocumentStore(client)
}

func newReportPublisher(cfg config.Chat) repository.ReportPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return repository.NewLogReportPublisher()
	}
	writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.ReportTopic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("connect kafka failed", zap.Error(err))
	}
	return repository.NewKafkaReportPublisher(writer)
}

func newCleanupQueue(cfg config.Chat) repository.CleanupQueue {
	if cfg.RabbitMQ.Host == "" {
		return repository.NewMemoryCleanupQueue(1024)
	}
	conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port),
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("connect rabbitmq failed", zap.Error(err))
	}
	ch, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, time.Second)
	if err != nil {
		logger.Log.Fatal("open rabbitmq channel failed", zap.Error(err))
	}
	queue, err := repository.NewRabbitCleanupQueue(database.NewRabbitRepository(ch), cfg.Cleanup.Queue)
	if err != nil {
		logger.Log.Fatal("declare cleanup queue failed", zap.Error(err))
	}
	return queue
}

func postgresURL(d config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Database)
}
