package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/domain"
)

func setupPaymentMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return gormDB, mock, func() { _ = db.Close() }
}

func TestPaymentRepository_Create(t *testing.T) {
	gormDB, mock, cleanup := setupPaymentMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)
	payment := &domain.Payment{ID: "payment-1", OrderID: "order-1", Amount: domain.Money{Amount: 1000}, PaymentMethod: "card", Status: domain.PaymentStatusPending, IdempotencyKey: "key-1"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payments`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), payment)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Create_DuplicateKey(t *testing.T) {
	gormDB, mock, cleanup := setupPaymentMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)
	payment := &domain.Payment{ID: "payment-1", OrderID: "order-1", Amount: domain.Money{Amount: 1000}, PaymentMethod: "card", IdempotencyKey: "key-1"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payments`")).
		WillReturnError(errors.New("Error 1062: Duplicate entry 'order-1' for key 'order_id'"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), payment)

	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
}

func TestPaymentRepository_GetByOrderID_NotFound(t *testing.T) {
	gormDB, mock, cleanup := setupPaymentMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)

	mock.ExpectQuery("SELECT \\* FROM `payments` WHERE order_id = \\?").
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByOrderID(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentRepository_UpdateStatus_CompletedPublishesOrderPaid(t *testing.T) {
	gormDB, mock, cleanup := setupPaymentMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)
	now := time.Now().Truncate(time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `payments` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `payments` WHERE id = \\?").
		WithArgs("payment-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "amount", "payment_method", "status", "idempotency_key", "created_at", "updated_at"}).
			AddRow("payment-1", "order-1", int64(1000), "card", "COMPLETED", "key-1", now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `outbox`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "payment-1", domain.PaymentStatusProcessing, domain.PaymentStatusCompleted, "")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_UpdateStatus_Conflict(t *testing.T) {
	gormDB, mock, cleanup := setupPaymentMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `payments` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `payments` WHERE id = \\?").
		WithArgs("payment-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), "payment-1", domain.PaymentStatusPending, domain.PaymentStatusProcessing, "")

	assert.ErrorIs(t, err, domain.ErrPaymentStatusConflict)
}

func TestPaymentRepository_CreateAttempt(t *testing.T) {
	gormDB, mock, cleanup := setupPaymentMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)
	attempt := &domain.PaymentAttempt{PaymentID: "payment-1", AttemptNumber: 1, Status: domain.AttemptStatusPending}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_attempts`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateAttempt(context.Background(), attempt)

	require.NoError(t, err)
	assert.NotEmpty(t, attempt.ID)
}

func TestPaymentRepository_ListAttempts(t *testing.T) {
	gormDB, mock, cleanup := setupPaymentMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)
	now := time.Now().Truncate(time.Second)

	mock.ExpectQuery("SELECT \\* FROM `payment_attempts` WHERE payment_id = \\?").
		WithArgs("payment-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "attempt_number", "status", "started_at"}).
			AddRow("attempt-1", "payment-1", 1, "SUCCESS", now))

	attempts, err := repo.ListAttempts(context.Background(), "payment-1")

	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestPaymentModel_TableName(t *testing.T) {
	assert.Equal(t, "payments", PaymentModel{}.TableName())
	assert.Equal(t, "payment_attempts", PaymentAttemptModel{}.TableName())
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.False(t, isDuplicateKeyError(nil))
	assert.True(t, isDuplicateKeyError(errors.New("Error 1062: Duplicate entry")))
	assert.False(t, isDuplicateKeyError(errors.New("connection refused")))
}
