package schema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shepherrrd/schemasync/internal/drivers"
	"github.com/shepherrrd/schemasync/internal/errors"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func TestNewDBReader_Unsupported(t *testing.T) {
	db, _ := newMockDB(t)
	_, err := NewDBReader(db, drivers.NewSQLiteDriver())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Unsupported))
}

func TestDBReader_DescribeAndCache(t *testing.T) {
	db, mock := newMockDB(t)
	r, err := NewDBReader(db, drivers.NewMySQLDriver())
	require.NoError(t, err)
	ctx := context.Background()

	mock.ExpectQuery("information_schema.TABLES").WithArgs("contact").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("information_schema.COLUMNS").WithArgs("contact").
		WillReturnRows(sqlmock.NewRows([]string{"name", "column_type", "is_nullable", "default_value", "extra"}).
			AddRow("id", "int(11)", false, nil, "auto_increment").
			AddRow("email", "varchar(100)", true, "'x'", ""))
	mock.ExpectQuery("information_schema.STATISTICS").WithArgs("contact").
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "column_name", "non_unique", "seq"}).
			AddRow("PRIMARY", "id", false, 1).
			AddRow("email", "email", false, 1))

	exists, err := r.TableExists(ctx, "contact")
	require.NoError(t, err)
	assert.True(t, exists)

	cols, err := r.Columns(ctx, "contact")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "`id` int(11) NOT NULL AUTO_INCREMENT", cols[0].Render())
	assert.Equal(t, "`email` varchar(100) DEFAULT 'x'", cols[1].Render())

	keys, err := r.Keys(ctx, "contact")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "UNIQUE KEY `email` (`email`)", keys[1].Render())

	// Cached: no further queries expected.
	_, err = r.TableExists(ctx, "contact")
	require.NoError(t, err)
	_, err = r.Columns(ctx, "contact")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	r.Invalidate("contact")
	mock.ExpectQuery("information_schema.TABLES").WithArgs("contact").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	exists, err = r.TableExists(ctx, "contact")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
