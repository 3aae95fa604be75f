package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
)

func setupNotificationMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return gormDB, mock, func() { _ = db.Close() }
}

func TestNotificationRepository_Create(t *testing.T) {
	gormDB, mock, cleanup := setupNotificationMockDB(t)
	defer cleanup()

	repo := NewNotificationRepository(gormDB)
	n := &domain.Notification{UserID: "user-1", OrderID: "order-1", Subject: "Привет", Message: "Тест", Channels: []domain.Channel{domain.ChannelEmail}, Priority: "normal", Status: domain.StatusPending}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `notifications`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), n)

	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_GetByID_NotFound(t *testing.T) {
	gormDB, mock, cleanup := setupNotificationMockDB(t)
	defer cleanup()

	repo := NewNotificationRepository(gormDB)

	mock.ExpectQuery("SELECT \\* FROM `notifications` WHERE id = \\?").
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestNotificationRepository_GetByID_Found(t *testing.T) {
	gormDB, mock, cleanup := setupNotificationMockDB(t)
	defer cleanup()

	repo := NewNotificationRepository(gormDB)
	now := time.Now().Truncate(time.Second)

	mock.ExpectQuery("SELECT \\* FROM `notifications` WHERE id = \\?").
		WithArgs("notif-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "order_id", "subject", "message", "channels", "priority", "status", "created_at", "updated_at"}).
			AddRow("notif-1", "user-1", "order-1", "Привет", "Тест", "EMAIL,SMS", "normal", "SENT", now, now))

	n, err := repo.GetByID(context.Background(), "notif-1")

	require.NoError(t, err)
	assert.Equal(t, []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}, n.Channels)
}

func TestNotificationRepository_UpdateStatus(t *testing.T) {
	gormDB, mock, cleanup := setupNotificationMockDB(t)
	defer cleanup()

	repo := NewNotificationRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `notifications` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "notif-1", domain.StatusSent)

	require.NoError(t, err)
}

func TestNotificationRepository_CreateAttempt(t *testing.T) {
	gormDB, mock, cleanup := setupNotificationMockDB(t)
	defer cleanup()

	repo := NewNotificationRepository(gormDB)
	attempt := &domain.DeliveryAttempt{NotificationID: "notif-1", Channel: domain.ChannelEmail, AttemptNumber: 1}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `delivery_attempts`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateAttempt(context.Background(), attempt)

	require.NoError(t, err)
	assert.NotEmpty(t, attempt.ID)
}

func TestNotificationRepository_CompleteAttempt(t *testing.T) {
	gormDB, mock, cleanup := setupNotificationMockDB(t)
	defer cleanup()

	repo := NewNotificationRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `delivery_attempts` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CompleteAttempt(context.Background(), "attempt-1", domain.AttemptFailed, "недоступен")

	require.NoError(t, err)
}

func TestChannelsToStringAndBack(t *testing.T) {
	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelPush}
	s := channelsToString(channels)
	assert.Equal(t, channels, channelsFromString(s))
	assert.Nil(t, channelsFromString(""))
}

func TestNotificationModel_TableName(t *testing.T) {
	assert.Equal(t, "notifications", NotificationModel{}.TableName())
	assert.Equal(t, "delivery_attempts", DeliveryAttemptModel{}.TableName())
	assert.Equal(t, "notification_templates", TemplateModel{}.TableName())
}
