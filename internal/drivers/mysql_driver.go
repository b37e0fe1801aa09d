package drivers

import (
	"database/sql"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type MySQLDriver struct{}

func NewMySQLDriver() *MySQLDriver {
	return &MySQLDriver{}
}

func (m *MySQLDriver) Name() string {
	return "mysql"
}

func (m *MySQLDriver) Connect(connectionString string) (*gorm.DB, error) {
	return m.ConnectWithLogger(connectionString, nil, "silent")
}

func (m *MySQLDriver) ConnectWithLogger(connectionString string, logger hclog.Logger, logLevel string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(connectionString), &gorm.Config{
		Logger: newGormLogger(logger, logLevel),
	})
}

func (m *MySQLDriver) GetSQLDB(db *gorm.DB) (*sql.DB, error) {
	return db.DB()
}

func (m *MySQLDriver) SupportsSchemaSync() bool {
	return true
}

func (m *MySQLDriver) TableExistsQuery() string {
	return `
		SELECT COUNT(*)
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_NAME = ?`
}

func (m *MySQLDriver) ColumnsQuery() string {
	return `
		SELECT
			c.COLUMN_NAME as name,
			c.COLUMN_TYPE as column_type,
			c.IS_NULLABLE = 'YES' as is_nullable,
			c.COLUMN_DEFAULT as default_value,
			c.EXTRA as extra
		FROM information_schema.COLUMNS c
		WHERE c.TABLE_SCHEMA = DATABASE()
			AND c.TABLE_NAME = ?
		ORDER BY c.ORDINAL_POSITION`
}

func (m *MySQLDriver) KeysQuery() string {
	return `
		SELECT
			s.INDEX_NAME as index_name,
			s.COLUMN_NAME as column_name,
			s.NON_UNIQUE = 1 as non_unique,
			s.SEQ_IN_INDEX as seq
		FROM information_schema.STATISTICS s
		WHERE s.TABLE_SCHEMA = DATABASE()
			AND s.TABLE_NAME = ?
		ORDER BY s.INDEX_NAME, s.SEQ_IN_INDEX`
}
