package drivers

import (
	"database/sql"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteDriver serves the migration ledger and update scripts, mostly for
// local runs and tests.
type SQLiteDriver struct{}

func NewSQLiteDriver() *SQLiteDriver {
	return &SQLiteDriver{}
}

func (s *SQLiteDriver) Name() string {
	return "sqlite"
}

func (s *SQLiteDriver) Connect(connectionString string) (*gorm.DB, error) {
	return s.ConnectWithLogger(connectionString, nil, "silent")
}

func (s *SQLiteDriver) ConnectWithLogger(connectionString string, logger hclog.Logger, logLevel string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: newGormLogger(logger, logLevel),
	})
}

func (s *SQLiteDriver) GetSQLDB(db *gorm.DB) (*sql.DB, error) {
	return db.DB()
}

func (s *SQLiteDriver) SupportsSchemaSync() bool {
	return false
}

func (s *SQLiteDriver) TableExistsQuery() string { return "" }
func (s *SQLiteDriver) ColumnsQuery() string     { return "" }
func (s *SQLiteDriver) KeysQuery() string        { return "" }
