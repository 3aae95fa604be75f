package outbox

import (
	"context"
	"time"

	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// KafkaProducer — интерфейс для отправки сообщений в Kafka.
// Позволяет замокать kafka.Producer в unit-тестах (Dependency Inversion).
type KafkaProducer interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

// WorkerConfig — настройки Outbox Worker.
type WorkerConfig struct {
	// PollInterval — интервал между опросами таблицы outbox (default 5s).
	PollInterval time.Duration

	// BatchSize — количество записей за один запрос (default 10).
	BatchSize int

	// MaxRetries — максимальное количество попыток отправки (default 3).
	// После превышения запись помечается как "dead letter".
	MaxRetries int

	// Retention — срок хранения обработанных записей перед GC (default 24h).
	Retention time.Duration
}

// DefaultWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
		Retention:    24 * time.Hour,
	}
}

// cleanupInterval — как часто запускается GC обработанных записей.
const cleanupInterval = 1 * time.Hour

// OutboxWorker читает записи из outbox и отправляет их в Kafka.
// Реализует гарантию "at-least-once" доставки.
type OutboxWorker struct {
	repo     OutboxRepository
	producer KafkaProducer
	cfg      WorkerConfig
	name     string // Имя для идентификации в логах (order / payment)
}

// NewOutboxWorker создаёт новый Outbox Worker.
// name — имя сервиса для логов (например, "order" или "payment").
func NewOutboxWorker(repo OutboxRepository, producer KafkaProducer, cfg WorkerConfig, name string) *OutboxWorker {
	if cfg.PollInterval == 0 {
		cfg = DefaultWorkerConfig()
	}
	return &OutboxWorker{
		repo:     repo,
		producer: producer,
		cfg:      cfg,
		name:     name,
	}
}

// Run запускает Worker. Блокирует выполнение до отмены контекста.
// На SIGTERM/SIGINT (отмена ctx) текущая запись дообрабатывается,
// остаток пачки не обрабатывается, и Worker выходит — ctx.Done()
// проверяется между записями, а не посередине отправки одной записи.
func (w *OutboxWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Str("name", w.name).
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск Outbox Worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("name", w.name).Msg("Остановка Outbox Worker")
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanupProcessed(ctx)
		}
	}
}

// cleanupProcessed удаляет обработанные записи outbox старше Retention.
func (w *OutboxWorker) cleanupProcessed(ctx context.Context) {
	log := logger.FromContext(ctx)

	before := time.Now().Add(-w.cfg.Retention)
	deleted, err := w.repo.DeleteProcessedBefore(ctx, before)
	if err != nil {
		log.Error().Err(err).Str("name", w.name).Msg("Ошибка очистки outbox")
		return
	}

	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Str("name", w.name).Msg("Очистка обработанных записей outbox")
	}
}

// processOutbox обрабатывает пачку необработанных записей.
func (w *OutboxWorker) processOutbox(ctx context.Context) {
	log := logger.FromContext(ctx)

	records, err := w.repo.GetUnprocessed(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Str("name", w.name).Msg("Ошибка чтения outbox")
		return
	}

	if len(records) == 0 {
		return
	}

	log.Debug().Int("count", len(records)).Str("name", w.name).Msg("Обработка записей outbox")

	for _, record := range records {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Исчерпание MaxRetries: запись остаётся видимой как dead-letter,
		// но не блокирует обработку остальных — помечаем processed без
		// публикации, не вводя отдельную dead-letter очередь.
		if record.RetryCount >= w.cfg.MaxRetries {
			log.Warn().
				Str("outbox_id", record.ID).
				Str("event_type", record.EventType).
				Str("aggregate_id", record.AggregateID).
				Int("retry_count", record.RetryCount).
				Msg("Dead letter: превышен лимит попыток, запись выведена из очереди")

			if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
				log.Error().Err(err).Str("outbox_id", record.ID).Msg("Ошибка пометки dead letter")
			}
			continue
		}

		w.sendToKafka(ctx, record)
	}
}

// sendToKafka отправляет запись в Kafka.
func (w *OutboxWorker) sendToKafka(ctx context.Context, record *Outbox) {
	log := logger.FromContext(ctx)

	msg := &kafka.Message{
		Topic:   record.Topic,
		Key:     []byte(record.MessageKey),
		Value:   record.Payload,
		Headers: record.Headers,
	}

	if err := w.producer.SendMessage(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("outbox_id", record.ID).
			Str("topic", record.Topic).
			Msg("Ошибка отправки в Kafka")

		if markErr := w.repo.MarkFailed(ctx, record.ID, err); markErr != nil {
			log.Error().Err(markErr).Str("outbox_id", record.ID).Msg("Ошибка пометки outbox как failed")
		}
		return
	}

	if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
		log.Error().
			Err(err).
			Str("outbox_id", record.ID).
			Msg("Ошибка пометки outbox как обработанной")
		return
	}

	log.Debug().
		Str("outbox_id", record.ID).
		Str("topic", record.Topic).
		Str("event_type", record.EventType).
		Msg("Сообщение отправлено в Kafka")
}

// ProcessSingle обрабатывает одну запись outbox (используется в тестах
// и при ручном прогоне одного цикла relay).
func (w *OutboxWorker) ProcessSingle(ctx context.Context, record *Outbox) error {
	msg := &kafka.Message{
		Topic:   record.Topic,
		Key:     []byte(record.MessageKey),
		Value:   record.Payload,
		Headers: record.Headers,
	}

	if err := w.producer.SendMessage(ctx, msg); err != nil {
		_ = w.repo.MarkFailed(ctx, record.ID, err)
		return err
	}

	return w.repo.MarkProcessed(ctx, record.ID)
}
