// Package updates resolves update identifiers to the scripts that apply
// them. An identifier X may have a SQL script X.sql, an imperative Go
// script X.go, both or neither.
package updates

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"

	"github.com/shepherrrd/schemasync/internal/errors"
)

// Source finds and runs the scripts behind update identifiers.
type Source interface {
	HasSQLScript(id string) bool
	HasImperativeScript(id string) bool
	// Apply runs every script the identifier has, SQL first. An identifier
	// with no scripts applies as a no-op.
	Apply(ctx context.Context, db *sql.DB, id string) error
}

// DirSource reads scripts from a directory of an fs.FS.
type DirSource struct {
	fsys fs.FS
	dir  string
}

// NewDirSource returns a source over dir inside fsys. dir may be ".".
func NewDirSource(fsys fs.FS, dir string) *DirSource {
	return &DirSource{fsys: fsys, dir: dir}
}

func (s *DirSource) file(id, ext string) string {
	return path.Join(s.dir, id+ext)
}

func (s *DirSource) exists(name string) bool {
	if s.fsys == nil {
		return false
	}
	st, err := fs.Stat(s.fsys, name)
	return err == nil && !st.IsDir()
}

func (s *DirSource) HasSQLScript(id string) bool {
	return s.exists(s.file(id, ".sql"))
}

func (s *DirSource) HasImperativeScript(id string) bool {
	return s.exists(s.file(id, ".go"))
}

func (s *DirSource) Apply(ctx context.Context, db *sql.DB, id string) error {
	const op = "updates.(DirSource).Apply"
	if s.HasSQLScript(id) {
		src, err := fs.ReadFile(s.fsys, s.file(id, ".sql"))
		if err != nil {
			return errors.Wrap(err, errors.UpdateScript, op, "read "+id+".sql")
		}
		if err := ExecSQL(ctx, db, string(src)); err != nil {
			return errors.Wrap(err, errors.UpdateScript, op, id+".sql")
		}
	}
	if s.HasImperativeScript(id) {
		src, err := fs.ReadFile(s.fsys, s.file(id, ".go"))
		if err != nil {
			return errors.Wrap(err, errors.UpdateScript, op, "read "+id+".go")
		}
		fn, err := CompileScript(string(src))
		if err != nil {
			return errors.Wrap(err, errors.UpdateScript, op, id+".go")
		}
		if err := callScript(ctx, db, fn); err != nil {
			return errors.Wrap(err, errors.UpdateScript, op, id+".go")
		}
	}
	return nil
}

// ExecSQL runs each statement of script in order. Statements auto-commit
// individually.
func ExecSQL(ctx context.Context, db *sql.DB, script string) error {
	for i, stmt := range SplitStatements(script) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Func is an update implemented in code.
type Func func(ctx context.Context, db *sql.DB) error

// FuncSource holds updates registered in code. Identifiers it does not
// know are resolved through the fallback source, if set.
type FuncSource struct {
	funcs    map[string]Func
	fallback Source
}

func NewFuncSource(fallback Source) *FuncSource {
	return &FuncSource{funcs: make(map[string]Func), fallback: fallback}
}

// Register binds fn to id, replacing any earlier registration.
func (s *FuncSource) Register(id string, fn Func) *FuncSource {
	s.funcs[id] = fn
	return s
}

func (s *FuncSource) HasSQLScript(id string) bool {
	return s.fallback != nil && s.fallback.HasSQLScript(id)
}

func (s *FuncSource) HasImperativeScript(id string) bool {
	if _, ok := s.funcs[id]; ok {
		return true
	}
	return s.fallback != nil && s.fallback.HasImperativeScript(id)
}

func (s *FuncSource) Apply(ctx context.Context, db *sql.DB, id string) error {
	fn, ok := s.funcs[id]
	if s.fallback != nil {
		if err := s.fallback.Apply(ctx, db, id); err != nil {
			return err
		}
	}
	if !ok {
		return nil
	}
	if err := callScript(ctx, db, fn); err != nil {
		return errors.Wrap(err, errors.UpdateScript, "updates.(FuncSource).Apply", id)
	}
	return nil
}

func callScript(ctx context.Context, db *sql.DB, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, db)
}
