package drivers

import (
	"database/sql"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgreSQLDriver serves the migration ledger and update scripts. The
// synchronizer's DDL is MySQL-flavoured, so schema sync is not offered.
type PostgreSQLDriver struct{}

func NewPostgreSQLDriver() *PostgreSQLDriver {
	return &PostgreSQLDriver{}
}

func (p *PostgreSQLDriver) Name() string {
	return "postgres"
}

func (p *PostgreSQLDriver) Connect(connectionString string) (*gorm.DB, error) {
	return p.ConnectWithLogger(connectionString, nil, "silent")
}

func (p *PostgreSQLDriver) ConnectWithLogger(connectionString string, logger hclog.Logger, logLevel string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(connectionString), &gorm.Config{
		Logger: newGormLogger(logger, logLevel),
	})
}

func (p *PostgreSQLDriver) GetSQLDB(db *gorm.DB) (*sql.DB, error) {
	return db.DB()
}

func (p *PostgreSQLDriver) SupportsSchemaSync() bool {
	return false
}

func (p *PostgreSQLDriver) TableExistsQuery() string { return "" }
func (p *PostgreSQLDriver) ColumnsQuery() string     { return "" }
func (p *PostgreSQLDriver) KeysQuery() string        { return "" }
