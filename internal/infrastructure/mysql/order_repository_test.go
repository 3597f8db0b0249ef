package mysql

import (
	"context"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (*OrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewOrderRepository(db), mock
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:            "o-1",
		CustomerEmail: "jane@example.com",
		Address:       "12 Main St",
		CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Lines: []domain.Line{
			domain.Reserved(0, 1, 5, 5),
			domain.Rejected(1, 2, 999, domain.ReasonInsufficientQuantity),
		},
	}
}

func TestOrderRepositoryUpdateReplacesLines(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `orders` WHERE id = \\?").
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("DELETE FROM `order_lines` WHERE order_id = \\?").
		WithArgs("o-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO `order_lines`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), sampleOrder()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryUpdateUnknownOrder(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `orders` WHERE id = \\?").
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryDeleteRemovesLinesFirst(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `order_lines` WHERE order_id = \\?").
		WithArgs("o-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `orders` WHERE id = \\?").
		WithArgs("o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "o-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryDeleteUnknownOrder(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `order_lines` WHERE order_id = \\?").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `orders` WHERE id = \\?").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
