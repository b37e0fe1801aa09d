package schema

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/shepherrrd/schemasync/internal/drivers"
	"github.com/shepherrrd/schemasync/internal/errors"
)

// LiveSchemaReader introspects existing tables.
type LiveSchemaReader interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]*ColumnSpec, error)
	Keys(ctx context.Context, table string) ([]*KeySpec, error)
	// Invalidate drops anything cached for table; called after DDL on it.
	Invalidate(table string)
}

type liveTable struct {
	exists  *bool
	columns []*ColumnSpec
	keys    []*KeySpec
	hasCols bool
	hasKeys bool
}

// DBReader reads the live schema through the driver's information_schema
// queries and caches results per table for the lifetime of one run.
type DBReader struct {
	db     *gorm.DB
	driver drivers.DatabaseDriver
	cache  map[string]*liveTable
}

// NewDBReader returns a reader, or an Unsupported error when the driver
// cannot introspect tables.
func NewDBReader(db *gorm.DB, driver drivers.DatabaseDriver) (*DBReader, error) {
	if !driver.SupportsSchemaSync() {
		return nil, errors.Newf(errors.Unsupported, "schema.NewDBReader",
			"driver %q does not support schema synchronization", driver.Name())
	}
	return &DBReader{db: db, driver: driver, cache: make(map[string]*liveTable)}, nil
}

func (r *DBReader) entry(table string) *liveTable {
	e, ok := r.cache[table]
	if !ok {
		e = &liveTable{}
		r.cache[table] = e
	}
	return e
}

func (r *DBReader) TableExists(ctx context.Context, table string) (bool, error) {
	e := r.entry(table)
	if e.exists != nil {
		return *e.exists, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Raw(r.driver.TableExistsQuery(), table).Scan(&count).Error; err != nil {
		return false, errors.Wrap(err, errors.DDLExecution, "schema.(DBReader).TableExists", "describe "+table)
	}
	exists := count > 0
	e.exists = &exists
	return exists, nil
}

func (r *DBReader) Columns(ctx context.Context, table string) ([]*ColumnSpec, error) {
	const op = "schema.(DBReader).Columns"
	e := r.entry(table)
	if e.hasCols {
		return e.columns, nil
	}
	rows, err := r.db.WithContext(ctx).Raw(r.driver.ColumnsQuery(), table).Rows()
	if err != nil {
		return nil, errors.Wrap(err, errors.DDLExecution, op, "describe "+table)
	}
	defer rows.Close()

	var columns []*ColumnSpec
	for rows.Next() {
		var (
			info drivers.ColumnInfo
			def  sql.NullString
		)
		if err := rows.Scan(&info.Name, &info.ColumnType, &info.IsNullable, &def, &info.Extra); err != nil {
			return nil, errors.Wrap(err, errors.DDLExecution, op, "scan column of "+table)
		}
		if def.Valid {
			info.DefaultValue = &def.String
		}
		columns = append(columns, ColumnFromLive(info))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.DDLExecution, op, "describe "+table)
	}
	e.columns, e.hasCols = columns, true
	return columns, nil
}

func (r *DBReader) Keys(ctx context.Context, table string) ([]*KeySpec, error) {
	const op = "schema.(DBReader).Keys"
	e := r.entry(table)
	if e.hasKeys {
		return e.keys, nil
	}
	rows, err := r.db.WithContext(ctx).Raw(r.driver.KeysQuery(), table).Rows()
	if err != nil {
		return nil, errors.Wrap(err, errors.DDLExecution, op, "describe keys of "+table)
	}
	defer rows.Close()

	var infos []drivers.KeyInfo
	for rows.Next() {
		var info drivers.KeyInfo
		if err := rows.Scan(&info.IndexName, &info.ColumnName, &info.NonUnique, &info.Seq); err != nil {
			return nil, errors.Wrap(err, errors.DDLExecution, op, "scan key of "+table)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.DDLExecution, op, "describe keys of "+table)
	}
	e.keys, e.hasKeys = KeysFromLive(infos), true
	return e.keys, nil
}

func (r *DBReader) Invalidate(table string) {
	delete(r.cache, table)
}
