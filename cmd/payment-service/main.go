// Payment Service — потребляет OrderCreated, создаёт идемпотентный
// платёж и исполняет его ограниченным по попыткам вызовом платёжного
// провайдера за Circuit Breaker'ом, публикуя OrderPaid или PaymentFailed.
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

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/consumer"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/executor"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/handler"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/provider"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/circuitbreaker"
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

const aggregateType = "payment"

// stuckPaymentSweepInterval — периодичность фонового поиска зависших
// в PENDING платежей.
const stuckPaymentSweepInterval = 1 * time.Minute

// stuckPaymentThreshold — платёж считается зависшим, если он провёл в
// PENDING дольше этого времени без перехода в PROCESSING.
const stuckPaymentThreshold = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	log := logger.With().Str("service", "payment-service").Logger()

	log.Info().Str("env", cfg.App.Env).Int("port", cfg.App.HTTPPort).Msg("Запуск Payment Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "payment-service",
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
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "payment-service", metrics.WithReadinessCheck(readinessCheck))
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

	paymentRepo := repository.NewPaymentRepository(gormDB)
	outboxRepo := outbox.NewOutboxRepository(gormDB, aggregateType)

	breaker := circuitbreaker.New("payment-provider", circuitbreaker.Settings{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		Timeout:          cfg.CircuitBreaker.Timeout,
	})

	paymentProvider := provider.New(cfg.Payment.MockProvider, cfg.Payment.Timeout)

	paymentExecutor := executor.New(paymentRepo, paymentProvider, breaker, executor.Config{
		MaxAttempts: cfg.Payment.MaxRetries,
		BaseDelay:   cfg.Payment.RetryDelay,
		DelayCap:    30 * time.Second,
	})

	paymentSvc := service.NewPaymentService(paymentRepo, paymentExecutor, redisClient)

	ctx, cancel := context.WithCancel(context.Background())

	var kafkaProducer *kafka.Producer
	var orderEventsConsumer *consumer.OrderEventsConsumer
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
		}, "payment")
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

		kafkaConsumer, err := kafka.NewConsumer(kafka.Config{Brokers: cfg.Kafka.Brokers}, kafka.TopicOrderEvents, kafka.GroupPaymentService)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumer")
		}
		kafkaConsumer.SetDLQProducer(kafkaProducer)

		orderEventsConsumer = consumer.NewOrderEventsConsumer(kafkaConsumer, paymentSvc)
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

		log.Info().Msg("Payment Service Kafka pipeline запущен")
	} else {
		log.Warn().Msg("Kafka не настроена — публикация и потребление событий отключены")
	}

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в Stuck Payment Sweeper")
			}
		}()
		runStuckPaymentSweeper(ctx, paymentSvc)
	}()

	paymentHandler := handler.NewPaymentHandler(paymentSvc, breaker)
	router := newRouter(paymentHandler, cfg.IsDevelopment())

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
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
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

	log.Info().Msg("Payment Service остановлен")
}

// runStuckPaymentSweeper периодически переводит зависшие в PENDING
// платежи в FAILED. Завершается по отмене ctx.
func runStuckPaymentSweeper(ctx context.Context, svc service.PaymentService) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(stuckPaymentSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := svc.RecoverStuckPending(ctx, stuckPaymentThreshold)
			if err != nil {
				log.Error().Err(err).Msg("Ошибка восстановления зависших платежей")
				continue
			}
			if recovered > 0 {
				log.Info().Int("count", recovered).Msg("Зависшие платежи переведены в FAILED")
			}
		}
	}
}

func newRouter(h *handler.PaymentHandler, debug bool) *gin.Engine {
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
		v1.POST("/payments", h.CreatePayment)
		v1.GET("/payments/:id", h.GetPayment)
		v1.GET("/payments/order/:order_id", h.GetPaymentByOrder)
		v1.GET("/payments/circuit-breaker/status", h.CircuitBreakerStatus)
	}

	return r
}
