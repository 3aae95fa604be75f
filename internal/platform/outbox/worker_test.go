package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
)

type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Create(ctx context.Context, o *Outbox) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Outbox), args.Error(1)
}

func (m *mockOutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepository) MarkFailed(ctx context.Context, id string, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *mockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockKafkaProducer struct {
	mock.Mock
}

func (m *mockKafkaProducer) SendMessage(ctx context.Context, msg *kafka.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestOutboxWorker_ProcessSingle_Success(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)

	worker := NewOutboxWorker(outboxRepo, producer, DefaultWorkerConfig(), "test")

	record := &Outbox{
		ID:         "outbox-123",
		Topic:      "order-events",
		MessageKey: "order-456",
		Payload:    []byte(`{"eventType":"OrderCreated"}`),
		Headers:    map[string]string{"trace_id": "trace-789"},
	}

	producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(nil)
	outboxRepo.On("MarkProcessed", ctx, "outbox-123").Return(nil)

	err := worker.ProcessSingle(ctx, record)

	require.NoError(t, err)
	producer.AssertExpectations(t)
	outboxRepo.AssertExpectations(t)
}

func TestOutboxWorker_ProcessSingle_SendError(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)

	worker := NewOutboxWorker(outboxRepo, producer, DefaultWorkerConfig(), "test")

	record := &Outbox{
		ID:         "outbox-123",
		Topic:      "order-events",
		MessageKey: "order-456",
		Payload:    []byte(`{"eventType":"OrderCreated"}`),
	}

	sendErr := errors.New("kafka unavailable")
	producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(sendErr)
	outboxRepo.On("MarkFailed", ctx, "outbox-123", sendErr).Return(nil)

	err := worker.ProcessSingle(ctx, record)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "kafka unavailable")
	producer.AssertExpectations(t)
	outboxRepo.AssertExpectations(t)
	outboxRepo.AssertNotCalled(t, "MarkProcessed")
}

func TestOutboxWorker_ProcessOutbox_DeadLetter(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)

	cfg := WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		MaxRetries:   3,
	}
	worker := NewOutboxWorker(outboxRepo, producer, cfg, "test")

	deadLetter := &Outbox{
		ID:          "outbox-dead",
		Topic:       "order-events",
		MessageKey:  "order-789",
		EventType:   "OrderCreated",
		AggregateID: "order-789",
		Payload:     []byte(`{}`),
		RetryCount:  5,
	}

	outboxRepo.On("GetUnprocessed", ctx, cfg.BatchSize).Return([]*Outbox{deadLetter}, nil)
	outboxRepo.On("MarkProcessed", ctx, "outbox-dead").Return(nil)

	worker.processOutbox(ctx)

	outboxRepo.AssertExpectations(t)
	producer.AssertNotCalled(t, "SendMessage")
}

func TestOutboxWorker_ProcessOutbox_BatchProcessing(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)

	cfg := WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		MaxRetries:   5,
	}
	worker := NewOutboxWorker(outboxRepo, producer, cfg, "test")

	records := []*Outbox{
		{ID: "outbox-1", Topic: "order-events", MessageKey: "order-1", Payload: []byte(`{}`)},
		{ID: "outbox-2", Topic: "order-events", MessageKey: "order-1", Payload: []byte(`{}`)},
	}

	outboxRepo.On("GetUnprocessed", ctx, cfg.BatchSize).Return(records, nil)
	producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(nil).Times(2)
	outboxRepo.On("MarkProcessed", ctx, "outbox-1").Return(nil)
	outboxRepo.On("MarkProcessed", ctx, "outbox-2").Return(nil)

	worker.processOutbox(ctx)

	outboxRepo.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestOutboxWorker_ProcessOutbox_PreservesRepositoryOrder(t *testing.T) {
	// processOutbox отправляет записи в том порядке, в каком их вернул
	// репозиторий — сама по себе сортировка проверяется в
	// repository_test.go, здесь только то, что worker её не переставляет.
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)

	cfg := WorkerConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10, MaxRetries: 5}
	worker := NewOutboxWorker(outboxRepo, producer, cfg, "test")

	records := []*Outbox{
		{ID: "outbox-old", Topic: "order-events", MessageKey: "order-1", EventType: "OrderCreated", Payload: []byte(`{}`)},
		{ID: "outbox-new", Topic: "order-events", MessageKey: "order-1", EventType: "OrderStatusChanged", Payload: []byte(`{}`)},
	}
	outboxRepo.On("GetUnprocessed", ctx, cfg.BatchSize).Return(records, nil)

	var sentIDs []string
	producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(*kafka.Message)
			sentIDs = append(sentIDs, string(msg.Key))
		}).
		Return(nil).Times(2)
	outboxRepo.On("MarkProcessed", ctx, "outbox-old").Return(nil)
	outboxRepo.On("MarkProcessed", ctx, "outbox-new").Return(nil)

	worker.processOutbox(ctx)

	outboxRepo.AssertExpectations(t)
	producer.AssertExpectations(t)
	assert.Equal(t, []string{"order-1", "order-1"}, sentIDs)
}

func TestOutboxWorker_ProcessOutbox_Empty(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)

	worker := NewOutboxWorker(outboxRepo, producer, DefaultWorkerConfig(), "test")

	outboxRepo.On("GetUnprocessed", ctx, mock.AnythingOfType("int")).Return([]*Outbox{}, nil)

	worker.processOutbox(ctx)

	outboxRepo.AssertExpectations(t)
	producer.AssertNotCalled(t, "SendMessage")
}

func TestOutboxWorker_Run_ContextCancel(t *testing.T) {
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)

	cfg := WorkerConfig{
		PollInterval: 50 * time.Millisecond,
		BatchSize:    10,
		MaxRetries:   5,
	}
	worker := NewOutboxWorker(outboxRepo, producer, cfg, "test")

	ctx, cancel := context.WithCancel(context.Background())

	outboxRepo.On("GetUnprocessed", mock.Anything, cfg.BatchSize).Return([]*Outbox{}, nil)

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker не остановился после отмены context")
	}
}

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig()

	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.Retention)
}
