// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App            AppConfig
	MySQL          MySQLConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Payment        PaymentConfig
	CircuitBreaker CircuitBreakerConfig
	Outbox         OutboxConfig
	Notification   NotificationConfig
	Jaeger         JaegerConfig
	Metrics        MetricsConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name       string `env:"APP_NAME" envDefault:"pizza-saga"`
	Env        string `env:"APP_ENV" envDefault:"development"`
	Version    string `env:"APP_VERSION" envDefault:"1.0.0"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty  bool   `env:"LOG_PRETTY" envDefault:"false"`
	HTTPPort   int    `env:"HTTP_PORT" envDefault:"8080"`
	CatalogURL string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8083/api/v1"`
}

// Addr возвращает адрес HTTP сервера сервиса.
func (c AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"pizza_saga"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN возвращает строку подключения к MySQL. Если задан DATABASE_URL в
// формате Go DSN (`user:pass@tcp(host:port)/db?...`), он имеет приоритет
// над дискретными MYSQL_* переменными — так сохраняется совместимость с
// единой переменной окружения, которую ожидает операционная документация.
func (c MySQLConfig) DSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka.
type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP_SUFFIX" envDefault:""`
	Retries       int      `env:"KAFKA_RETRIES" envDefault:"3"`
}

// PaymentConfig содержит параметры платёжного исполнителя.
type PaymentConfig struct {
	MaxRetries   int           `env:"PAYMENT_MAX_RETRIES" envDefault:"3"`
	RetryDelay   time.Duration `env:"PAYMENT_RETRY_DELAY" envDefault:"2s"`
	Timeout      time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"30s"`
	MockProvider string        `env:"PAYMENT_MOCK_URL" envDefault:"http://localhost:9100/api/v1/payments/process"`
}

// CircuitBreakerConfig содержит параметры circuit breaker для вызовов провайдера.
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `env:"CB_FAILURE_THRESHOLD" envDefault:"5"`
	SuccessThreshold uint32        `env:"CB_SUCCESS_THRESHOLD" envDefault:"3"`
	Timeout          time.Duration `env:"CB_TIMEOUT" envDefault:"60s"`
}

// OutboxConfig содержит параметры relay-воркера транзакционного outbox.
type OutboxConfig struct {
	PollInterval time.Duration `env:"PROCESSING_INTERVAL" envDefault:"5s"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"10"`
	MaxRetries   int           `env:"MAX_RETRIES" envDefault:"3"`
	Retention    time.Duration `env:"OUTBOX_RETENTION" envDefault:"24h"`
}

// NotificationConfig содержит настройки диспетчера уведомлений.
type NotificationConfig struct {
	EmailEnabled          bool `env:"EMAIL_ENABLED" envDefault:"true"`
	SMSEnabled            bool `env:"SMS_ENABLED" envDefault:"false"`
	PushEnabled           bool `env:"PUSH_ENABLED" envDefault:"true"`
	WebhookEnabled        bool `env:"WEBHOOK_ENABLED" envDefault:"false"`
	MaxNotificationsPerMin int `env:"MAX_NOTIFICATIONS_PER_MINUTE" envDefault:"100"`
	WebhookURL            string `env:"NOTIFICATION_WEBHOOK_URL" envDefault:""`
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
