package persistence

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
	"github.com/squill/backend/internal/infrastructure/config"
)

// newMockDatabase creates a Database backed by sqlmock with the postgres dialect
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewDatabaseFromGorm(gormDB), mock, mockDB
}

func TestNewDatabase(t *testing.T) {
	t.Run("sqlite file", func(t *testing.T) {
		cfg := &config.DatabaseConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/squill.db", LogLevel: "silent"}

		db, err := NewDatabase(cfg)
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, "sqlite", db.Driver())
		require.NoError(t, db.AutoMigrate(context.Background()))
		assert.True(t, db.DB.Migrator().HasTable("usage_events"))
		assert.True(t, db.DB.Migrator().HasTable("invoices"))

		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"})
		assert.ErrorContains(t, err, "unsupported database driver")
	})
}

func TestDatabase_Ping(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "postgres", db.Driver())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUsageEventRepository_PostgresQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("window and type filters are bound parameters", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormUsageEventRepository(db.DB)

		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT * FROM "usage_events" WHERE customer_id = $1 AND event_timestamp >= $2 AND event_timestamp <= $3 ORDER BY event_timestamp ASC,created_at ASC`,
		)).
			WithArgs("cust-1", "2024-01-01T00:00:00", "2024-01-31T23:59:59.999999").
			WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "event_timestamp", "event_type", "quantity"}).
				AddRow("0b7e6a52-6f0e-4a43-9a40-3d2f7d0b9f11", "cust-1", "2024-01-02T00:00:00", "api_call", "50"))

		events, err := repo.FindByCustomer(ctx, "cust-1", billing.UsageEventFilter{
			Start: "2024-01-01T00:00:00",
			End:   "2024-01-31T23:59:59.999999",
		})

		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "50", events[0].Quantity.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recent events are limited", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormUsageEventRepository(db.DB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "usage_events" ORDER BY event_timestamp DESC LIMIT $1`)).
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		events, err := repo.FindRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormBillingCustomerRepository_PostgresNotFound(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormBillingCustomerRepository(db.DB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "billing_customers" WHERE customer_id = $1`)).
		WithArgs("ghost", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
