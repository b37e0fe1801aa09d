package drivers

import (
	"database/sql"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
)

type DatabaseDriver interface {
	Name() string
	Connect(connectionString string) (*gorm.DB, error)
	ConnectWithLogger(connectionString string, logger hclog.Logger, logLevel string) (*gorm.DB, error)
	GetSQLDB(db *gorm.DB) (*sql.DB, error)
	// SupportsSchemaSync reports whether the driver can introspect tables
	// and run the MySQL-flavoured DDL the synchronizer emits.
	SupportsSchemaSync() bool
	TableExistsQuery() string
	ColumnsQuery() string
	KeysQuery() string
}

// ColumnInfo is one row of the driver's ColumnsQuery.
type ColumnInfo struct {
	Name         string
	ColumnType   string
	IsNullable   bool
	DefaultValue *string
	Extra        string
}

// KeyInfo is one row of the driver's KeysQuery, one per indexed column.
type KeyInfo struct {
	IndexName  string
	ColumnName string
	NonUnique  bool
	Seq        int
}
