// Order Service — принимает заказы, ведёт их жизненный цикл и публикует
// события жизненного цикла заказа в order-events; реагирует на
// payment-events для перевода заказа в PAID или FAILED.
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

	"github.com/vkuzmin/pizza-saga/internal/orderservice/consumer"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/handler"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/config"
	"github.com/vkuzmin/pizza-saga/internal/platform/db"
	"github.com/vkuzmin/pizza-saga/internal/platform/healthcheck"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
	"github.com/vkuzmin/pizza-saga/internal/platform/metrics"
	"github.com/vkuzmin/pizza-saga/internal/platform/middleware"
	"github.com/vkuzmin/pizza-saga/internal/platform/outbox"
	"github.com/vkuzmin/pizza-saga/internal/platform/tracing"
)

const aggregateType = "order"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	log := logger.With().Str("service", "order-service").Logger()

	log.Info().Str("env", cfg.App.Env).Int("port", cfg.App.HTTPPort).Msg("Запуск Order Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "order-service",
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

	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, gormDB) },
	)

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "order-service", metrics.WithReadinessCheck(readinessCheck))
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

	orderRepo := repository.NewOrderRepository(gormDB)
	outboxRepo := outbox.NewOutboxRepository(gormDB, aggregateType)
	catalogClient := service.NewHTTPPizzaCatalog(cfg.App.CatalogURL)
	orderSvc := service.NewOrderService(orderRepo, catalogClient)

	ctx, cancel := context.WithCancel(context.Background())

	var kafkaProducer *kafka.Producer
	var paymentEventsConsumer *consumer.PaymentEventsConsumer
	var outboxWorker *outbox.OutboxWorker
	var workersWg sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		if err := kafka.EnsureTopics(cfg.Kafka.Brokers, kafka.DefaultEventTopics()); err != nil {
			log.Warn().Err(err).Msg("Не удалось создать топики (возможно Kafka недоступна)")
		}

		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		outboxWorker = outbox.NewOutboxWorker(outboxRepo, kafkaProducer, outbox.WorkerConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxRetries:   cfg.Outbox.MaxRetries,
			Retention:    cfg.Outbox.Retention,
		}, "order")
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Outbox Worker")
				}
			}()
			log.Info().Msg("Запуск Outbox Worker")
			outboxWorker.Run(ctx)
		}()

		kafkaConsumer, err := kafka.NewConsumer(kafka.Config{Brokers: cfg.Kafka.Brokers}, kafka.TopicPaymentEvents, kafka.GroupOrderService)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumer")
		}
		kafkaConsumer.SetDLQProducer(kafkaProducer)

		paymentEventsConsumer = consumer.NewPaymentEventsConsumer(kafkaConsumer, orderSvc)
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

		log.Info().Msg("Order Service Kafka pipeline запущен")
	} else {
		log.Warn().Msg("Kafka не настроена — публикация и потребление событий отключены")
	}

	orderHandler := handler.NewOrderHandler(orderSvc)
	router := newRouter(orderHandler, cfg.IsDevelopment())

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

	if paymentEventsConsumer != nil {
		if err := paymentEventsConsumer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Payment Events Consumer")
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
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

	log.Info().Msg("Order Service остановлен")
}

func newRouter(h *handler.OrderHandler, debug bool) *gin.Engine {
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

	v1 := r.Group("/api/v1")
	{
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.PUT("/orders/:id/status", h.UpdateStatus)
	}

	return r
}
