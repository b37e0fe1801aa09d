// Package schemasync declares tables in code, synchronizes them with a live
// MySQL database and applies versioned, run-once updates per module.
package schemasync

import (
	"io/fs"

	"github.com/shepherrrd/schemasync/internal/drivers"
	"github.com/shepherrrd/schemasync/internal/errors"
	"github.com/shepherrrd/schemasync/internal/migrations"
	"github.com/shepherrrd/schemasync/internal/schema"
	"github.com/shepherrrd/schemasync/internal/updates"
)

type Runner = migrations.Runner
type Module = migrations.Module
type Option = migrations.Option
type Report = migrations.Report
type SchemaFunc = migrations.SchemaFunc

type Builder = schema.Builder
type TableSpec = schema.TableSpec
type ColumnSpec = schema.ColumnSpec
type KeySpec = schema.KeySpec
type Type = schema.Type

type UpdateSource = updates.Source
type UpdateFunc = updates.Func

const (
	Integer  = schema.TypeInteger
	Varchar  = schema.TypeVarchar
	Decimal  = schema.TypeDecimal
	Boolean  = schema.TypeBoolean
	DateTime = schema.TypeDateTime
	Date     = schema.TypeDate
	Time     = schema.TypeTime
	Text     = schema.TypeText
)

var (
	WithModules            = migrations.WithModules
	WithSchema             = migrations.WithSchema
	WithModuleOrder        = migrations.WithModuleOrder
	WithSafeMode           = migrations.WithSafeMode
	WithIgnoreScriptErrors = migrations.WithIgnoreScriptErrors
	WithDryRun             = migrations.WithDryRun
	WithLogger             = migrations.WithLogger

	NewDirSource  = updates.NewDirSource
	NewFuncSource = updates.NewFuncSource
)

// Open connects with the named driver (mysql, postgres or sqlite) and
// returns a Runner over it. Only mysql synchronizes schemas; the others
// keep the ledger and run updates.
func Open(connectionString, driverType string, opts ...Option) (*Runner, error) {
	driver, ok := drivers.ForName(driverType)
	if !ok {
		return nil, errors.Newf(errors.Configuration, "schemasync.Open", "unsupported driver: %s", driverType)
	}
	db, err := driver.Connect(connectionString)
	if err != nil {
		return nil, errors.Wrap(err, errors.Configuration, "schemasync.Open", "connect")
	}
	return migrations.NewRunner(db, driver, opts...)
}

// DiscoverModules returns one module per directory of fsys holding a
// version.txt manifest.
func DiscoverModules(fsys fs.FS) ([]Module, error) {
	return migrations.DiscoverModules(fsys)
}
