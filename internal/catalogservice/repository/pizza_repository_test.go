package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vkuzmin/pizza-saga/internal/catalogservice/domain"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return gormDB, mock, func() { _ = db.Close() }
}

func TestPizzaRepository_Create(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewPizzaRepository(gormDB)
	pizza := &domain.Pizza{ID: "pizza-1", Name: "Маргарита", Price: 1200, Available: true}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `pizzas`")).
		WithArgs(pizza.ID, pizza.Name, pizza.Price, pizza.Available, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), pizza)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPizzaRepository_GetByID(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		mockSetup   func(mock sqlmock.Sqlmock, id string)
		expectedErr error
	}{
		{
			name: "найдена",
			id:   "pizza-1",
			mockSetup: func(mock sqlmock.Sqlmock, id string) {
				now := time.Now().Truncate(time.Second)
				rows := sqlmock.NewRows([]string{"id", "name", "price", "available", "created_at", "updated_at"}).
					AddRow(id, "Пепперони", int64(1500), true, now, now)
				mock.ExpectQuery("SELECT \\* FROM `pizzas` WHERE id = \\? ORDER BY `pizzas`.`id` LIMIT \\?").
					WithArgs(id, 1).WillReturnRows(rows)
			},
			expectedErr: nil,
		},
		{
			name: "не найдена",
			id:   "missing",
			mockSetup: func(mock sqlmock.Sqlmock, id string) {
				rows := sqlmock.NewRows([]string{"id", "name", "price", "available", "created_at", "updated_at"})
				mock.ExpectQuery("SELECT \\* FROM `pizzas` WHERE id = \\? ORDER BY `pizzas`.`id` LIMIT \\?").
					WithArgs(id, 1).WillReturnRows(rows)
			},
			expectedErr: domain.ErrPizzaNotFound,
		},
		{
			name: "ошибка БД",
			id:   "pizza-err",
			mockSetup: func(mock sqlmock.Sqlmock, id string) {
				mock.ExpectQuery("SELECT \\* FROM `pizzas` WHERE id = \\? ORDER BY `pizzas`.`id` LIMIT \\?").
					WithArgs(id, 1).WillReturnError(sql.ErrConnDone)
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewPizzaRepository(gormDB)
			tt.mockSetup(mock, tt.id)

			pizza, err := repo.GetByID(context.Background(), tt.id)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, pizza)
			} else {
				require.NoError(t, err)
				require.NotNil(t, pizza)
				assert.Equal(t, tt.id, pizza.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPizzaRepository_Update(t *testing.T) {
	t.Run("успешное обновление", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		repo := NewPizzaRepository(gormDB)
		pizza := &domain.Pizza{ID: "pizza-1", Name: "Четыре сыра", Price: 1800, Available: false}

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `pizzas` SET")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Update(context.Background(), pizza)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("пицца не найдена", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		repo := NewPizzaRepository(gormDB)
		pizza := &domain.Pizza{ID: "missing", Name: "Четыре сыра", Price: 1800}

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `pizzas` SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.Update(context.Background(), pizza)

		assert.ErrorIs(t, err, domain.ErrPizzaNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPizzaRepository_Delete(t *testing.T) {
	t.Run("успешное удаление", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		repo := NewPizzaRepository(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `pizzas`")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Delete(context.Background(), "pizza-1")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("пицца не найдена", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		repo := NewPizzaRepository(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `pizzas`")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.Delete(context.Background(), "missing")

		assert.ErrorIs(t, err, domain.ErrPizzaNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPizzaModel_TableName(t *testing.T) {
	assert.Equal(t, "pizzas", PizzaModel{}.TableName())
}

func TestPizzaModel_ToDomain(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	model := &PizzaModel{ID: "pizza-1", Name: "Гавайская", Price: 1300, Available: true, CreatedAt: now, UpdatedAt: now}

	pizza := model.toDomain()

	assert.Equal(t, model.ID, pizza.ID)
	assert.Equal(t, model.Name, pizza.Name)
	assert.Equal(t, model.Price, pizza.Price)
	assert.Equal(t, model.Available, pizza.Available)
}
