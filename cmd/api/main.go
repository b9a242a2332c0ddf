package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glambeauty/order-service/config"
	"github.com/glambeauty/order-service/internal/auth"
	inventoryhandler "github.com/glambeauty/order-service/internal/inventory/handler"
	inventoryrepo "github.com/glambeauty/order-service/internal/inventory/repository"
	inventoryusecase "github.com/glambeauty/order-service/internal/inventory/usecase"
	orderhandler "github.com/glambeauty/order-service/internal/order/handler"
	"github.com/glambeauty/order-service/internal/order/listener"
	orderrepo "github.com/glambeauty/order-service/internal/order/repository"
	orderusecase "github.com/glambeauty/order-service/internal/order/usecase"
	"github.com/glambeauty/order-service/internal/platform/broker"
	"github.com/glambeauty/order-service/internal/platform/cache"
	"github.com/glambeauty/order-service/internal/platform/logger"
	"github.com/glambeauty/order-service/internal/platform/postgres"
	"github.com/glambeauty/order-service/internal/platform/search"
	producthandler "github.com/glambeauty/order-service/internal/product/handler"
	productrepo "github.com/glambeauty/order-service/internal/product/repository"
	productusecase "github.com/glambeauty/order-service/internal/product/usecase"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	log := logger.NewZapLogger(&logger.Config{
		IsDevelopment:     cfg.Server.AppEnv == "dev",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer log.Sync()

	log.Info("starting order service", zap.String("env", cfg.Server.AppEnv))

	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatal("postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()); err != nil {
		log.Warn("redis unreachable, stock locking degraded", zap.Error(err))
	}

	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		log.Warn("elasticsearch unavailable, product search degraded", zap.Error(err))
		esClient = nil
	}

	orderProducer := broker.NewKafkaProducer(&broker.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.OrderTopic,
	})
	defer orderProducer.Close()

	paymentConsumer := broker.NewKafkaConsumer(&broker.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.PaymentTopic,
		GroupID: cfg.Kafka.PaymentGroup,
	})
	defer paymentConsumer.Close()

	productRepo := productrepo.NewPGRepository(db)
	inventoryRepo := inventoryrepo.NewPGRepository(db)
	orderRepo := orderrepo.NewPGRepository(db)

	productUC := productusecase.NewProductUseCase(productRepo, esClient, log)
	inventoryUC := inventoryusecase.NewInventoryUseCase(inventoryRepo, productRepo, redisClient, log)
	orderUC := orderusecase.NewOrderUseCase(orderRepo, inventoryRepo, productRepo, redisClient, orderProducer, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paymentListener := listener.NewPaymentListener(paymentConsumer, orderUC, log)
	go paymentListener.Run(ctx)

	if cfg.Server.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.JWT.SecretKey))

	producthandler.NewHandler(productUC, log).RegisterRoutes(api)
	inventoryhandler.NewHandler(inventoryUC, log).RegisterRoutes(api)
	orderhandler.NewHandler(orderUC, log).RegisterRoutes(api)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler(router)

	server := &http.Server{
		Addr:         cfg.Server.HTTPPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("stopped")
}
