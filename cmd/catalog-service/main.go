// Catalog Service — справочник пицц (имя, цена), источник истины для
// снимков позиций, которые Order Service копирует в заказ при создании.
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

	"github.com/vkuzmin/pizza-saga/internal/catalogservice/handler"
	"github.com/vkuzmin/pizza-saga/internal/catalogservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/platform/config"
	"github.com/vkuzmin/pizza-saga/internal/platform/db"
	"github.com/vkuzmin/pizza-saga/internal/platform/healthcheck"
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
	log := logger.With().Str("service", "catalog-service").Logger()

	log.Info().Str("env", cfg.App.Env).Int("port", cfg.App.HTTPPort).Msg("Запуск Catalog Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "catalog-service",
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
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "catalog-service", metrics.WithReadinessCheck(readinessCheck))
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

	pizzaRepo := repository.NewPizzaRepository(gormDB)
	pizzaHandler := handler.NewPizzaHandler(pizzaRepo)
	router := newRouter(pizzaHandler, cfg.IsDevelopment())

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка при остановке HTTP сервера")
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

	log.Info().Msg("Catalog Service остановлен")
}

func newRouter(h *handler.PizzaHandler, debug bool) *gin.Engine {
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
		v1.POST("/pizzas", h.CreatePizza)
		v1.GET("/pizzas", h.ListPizzas)
		v1.GET("/pizzas/:id", h.GetPizza)
		v1.PUT("/pizzas/:id", h.UpdatePizza)
		v1.DELETE("/pizzas/:id", h.DeletePizza)
	}

	return r
}
