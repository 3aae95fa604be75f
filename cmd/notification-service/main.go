// Notification Service — потребляет order-events и payment-events,
// рендерит шаблоны уведомлений и доставляет их по настроенным каналам.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/consumer"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/dispatcher"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/handler"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/service"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/template"
	"github.com/vkuzmin/pizza-saga/internal/platform/config"
	"github.com/vkuzmin/pizza-saga/internal/platform/db"
	"github.com/vkuzmin/pizza-saga/internal/platform/healthcheck"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
	"github.com/vkuzmin/pizza-saga/internal/platform/metrics"
	"github.com/vkuzmin/pizza-saga/internal/platform/middleware"
	"github.com/vkuzmin/pizza-saga/internal/platform/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	log := logger.With().Str("service", "notification-service").Logger()

	log.Info().Str("env", cfg.App.Env).Int("port", cfg.App.HTTPPort).Msg("Запуск Notification Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "notification-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	gormDB, err := db.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	redisClient := db.ConnectRedis(cfg.Redis)

	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, gormDB) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, redisClient) },
	)

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "notification-service", metrics.WithReadinessCheck(readinessCheck))
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Metrics Server")
				}
			}()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	templateRegistry, err := template.NewRegistry(startupCtx, gormDB)
	startupCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка загрузки шаблонов уведомлений")
	}

	notificationRepo := repository.NewNotificationRepository(gormDB)
	disp := dispatcher.New(notificationRepo, dispatcher.Config{
		EmailEnabled:   cfg.Notification.EmailEnabled,
		SMSEnabled:     cfg.Notification.SMSEnabled,
		PushEnabled:    cfg.Notification.PushEnabled,
		WebhookEnabled: cfg.Notification.WebhookEnabled,
		WebhookURL:     cfg.Notification.WebhookURL,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, templateRegistry, disp)

	ctx, cancel := context.WithCancel(context.Background())

	var orderEventsConsumer *consumer.EventsConsumer
	var paymentEventsConsumer *consumer.EventsConsumer
	var workersWg sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		orderReader, err := kafka.NewConsumer(kafka.Config{Brokers: cfg.Kafka.Brokers}, kafka.TopicOrderEvents, kafka.GroupNotificationService)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumer для order-events")
		}
		orderEventsConsumer = consumer.NewEventsConsumer(orderReader, notificationSvc, kafka.TopicOrderEvents)
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Order Events Consumer")
				}
			}()
			log.Info().Msg("Запуск Order Events Consumer")
			if err := orderEventsConsumer.Run(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Ошибка Order Events Consumer")
			}
		}()

		paymentReader, err := kafka.NewConsumer(kafka.Config{Brokers: cfg.Kafka.Brokers}, kafka.TopicPaymentEvents, kafka.GroupNotificationService)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumer для payment-events")
		}
		paymentEventsConsumer = consumer.NewEventsConsumer(paymentReader, notificationSvc, kafka.TopicPaymentEvents)
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Payment Events Consumer")
				}
			}()
			log.Info().Msg("Запуск Payment Events Consumer")
			if err := paymentEventsConsumer.Run(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Ошибка Payment Events Consumer")
			}
		}()

		log.Info().Msg("Notification Service Kafka pipeline запущен")
	} else {
		log.Warn().Msg("Kafka не настроена — потребление событий отключено")
	}

	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	router := newRouter(notificationHandler, redisClient, cfg.Notification.MaxNotificationsPerMin, cfg.IsDevelopment())

	srv := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в HTTP сервере")
			}
		}()
		log.Info().Str("addr", cfg.App.Addr()).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	cancel()

	workersWg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка при остановке HTTP сервера")
	}

	if orderEventsConsumer != nil {
		if err := orderEventsConsumer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Order Events Consumer")
		}
	}
	if paymentEventsConsumer != nil {
		if err := paymentEventsConsumer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Payment Events Consumer")
		}
	}

	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}

	if sqlDB, err := gormDB.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Notification Service остановлен")
}

func newRouter(h *handler.NotificationHandler, redisClient *redis.Client, maxPerMinute int, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.NewTracingMiddleware().Handle())
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.SecurityHeaders())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	rateLimiter := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Redis:  redisClient,
		Limit:  maxPerMinute,
		Window: time.Minute,
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/notifications", rateLimiter.Handle(), h.CreateNotification)
		v1.GET("/notifications/:id", h.GetNotification)
	}

	return r
}
