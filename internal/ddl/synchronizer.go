// Package ddl diffs declared tables against the live schema and emits the
// CREATE TABLE and ALTER TABLE statements that reconcile them.
package ddl

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/shepherrrd/schemasync/internal/errors"
	"github.com/shepherrrd/schemasync/internal/schema"
)

// Mode selects whether committed statements run or are only captured.
type Mode int

const (
	// ModeLive executes statements against the database.
	ModeLive Mode = iota
	// ModeCapture accumulates statements into a script without executing.
	ModeCapture
)

// Executor runs one DDL statement.
type Executor interface {
	Exec(ctx context.Context, stmt string) error
}

// ExecFunc adapts a function to Executor.
type ExecFunc func(ctx context.Context, stmt string) error

func (f ExecFunc) Exec(ctx context.Context, stmt string) error { return f(ctx, stmt) }

// Statement is one DDL statement for one table.
type Statement struct {
	Table string
	SQL   string
}

type Option func(*Synchronizer)

// WithSafeMode suppresses DROP COLUMN and the dropping of undeclared keys.
func WithSafeMode(safe bool) Option {
	return func(s *Synchronizer) { s.safe = safe }
}

func WithMode(m Mode) Option {
	return func(s *Synchronizer) { s.mode = m }
}

func WithLogger(l hclog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// Synchronizer stages DDL for finalized tables and commits it in one pass.
// It is not safe for concurrent use.
type Synchronizer struct {
	reader schema.LiveSchemaReader
	exec   Executor
	mode   Mode
	safe   bool
	logger hclog.Logger

	staged   []Statement
	captured []string
	executed int
}

// New returns a Synchronizer. exec may be nil in ModeCapture.
func New(reader schema.LiveSchemaReader, exec Executor, opt ...Option) *Synchronizer {
	s := &Synchronizer{reader: reader, exec: exec, logger: hclog.NewNullLogger()}
	for _, o := range opt {
		o(s)
	}
	s.logger = s.logger.Named("ddl")
	return s
}

// Plan returns the statements that bring the live table in line with t,
// without staging them. It performs no DDL.
func (s *Synchronizer) Plan(ctx context.Context, t *schema.TableSpec) ([]Statement, error) {
	const op = "ddl.(Synchronizer).Plan"
	if err := t.Validate(); err != nil {
		return nil, err
	}
	exists, err := s.reader.TableExists(ctx, t.Name)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, op, "")
	}
	if !exists {
		return []Statement{{Table: t.Name, SQL: CreateTableSQL(t)}}, nil
	}
	liveCols, err := s.reader.Columns(ctx, t.Name)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, op, "")
	}
	liveKeys, err := s.reader.Keys(ctx, t.Name)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, op, "")
	}
	return s.diff(t, liveCols, liveKeys), nil
}

// diff orders output as key drops, one column ALTER, then key adds, so a
// dropped column never takes an index with it before its DROP INDEX runs
// and a new key always finds its columns. An AUTO_INCREMENT column must stay
// covered by a key, so the primary key is dropped after an ALTER that
// removes AUTO_INCREMENT and added before one that sets it.
func (s *Synchronizer) diff(t *schema.TableSpec, liveCols []*schema.ColumnSpec, liveKeys []*schema.KeySpec) []Statement {
	var (
		out       []Statement
		table     = schema.QuoteIdent(t.Name)
		clauses   []string
		liveCol   = make(map[string]*schema.ColumnSpec, len(liveCols))
		liveKey   = make(map[string]*schema.KeySpec, len(liveKeys))
		keyDrops  []Statement
		keyAdds   []Statement
		pkDrop    []Statement
		pkAdd     []Statement
		addsAI    bool
		removesAI bool
	)
	for _, c := range liveCols {
		liveCol[c.Name] = c
	}
	for _, k := range liveKeys {
		liveKey[k.Name] = k
	}
	drop := func(k *schema.KeySpec) {
		st := Statement{Table: t.Name, SQL: "ALTER TABLE " + table + " " + dropKeyClause(k)}
		if k.Kind == schema.KeyPrimary {
			pkDrop = append(pkDrop, st)
			return
		}
		keyDrops = append(keyDrops, st)
	}
	add := func(k *schema.KeySpec) {
		st := Statement{Table: t.Name, SQL: "ALTER TABLE " + table + " ADD " + k.Render()}
		if k.Kind == schema.KeyPrimary {
			pkAdd = append(pkAdd, st)
			return
		}
		keyAdds = append(keyAdds, st)
	}

	for _, k := range liveKeys {
		if _, ok := t.LookupKey(k.Name); !ok && !s.safe {
			drop(k)
		}
	}
	for _, k := range t.Keys() {
		live, ok := liveKey[k.Name]
		switch {
		case !ok:
			add(k)
		case live.Render() != k.Render():
			drop(live)
			add(k)
		}
	}

	if !s.safe {
		for _, c := range liveCols {
			if _, ok := t.LookupColumn(c.Name); !ok {
				clauses = append(clauses, "DROP COLUMN "+schema.QuoteIdent(c.Name))
			}
		}
	}
	for _, c := range t.Columns() {
		if _, ok := liveCol[c.Name]; !ok {
			clauses = append(clauses, "ADD COLUMN "+c.Render())
		}
	}
	for _, c := range t.Columns() {
		if live, ok := liveCol[c.Name]; ok && live.Render() != c.Render() {
			clauses = append(clauses, "CHANGE COLUMN "+schema.QuoteIdent(c.Name)+" "+c.Render())
			addsAI = addsAI || (c.IsAutoIncrement && !live.IsAutoIncrement)
			removesAI = removesAI || (live.IsAutoIncrement && !c.IsAutoIncrement)
		}
	}

	out = append(out, keyDrops...)
	if !removesAI {
		out = append(out, pkDrop...)
	}
	if addsAI {
		out = append(out, pkAdd...)
	}
	if len(clauses) > 0 {
		out = append(out, Statement{Table: t.Name, SQL: "ALTER TABLE " + table + " " + strings.Join(clauses, ", ")})
	}
	if removesAI {
		out = append(out, pkDrop...)
	}
	if !addsAI {
		out = append(out, pkAdd...)
	}
	return append(out, keyAdds...)
}

func dropKeyClause(k *schema.KeySpec) string {
	if k.Kind == schema.KeyPrimary {
		return "DROP PRIMARY KEY"
	}
	return "DROP INDEX " + schema.QuoteIdent(k.Name)
}

// CreateTableSQL renders the CREATE TABLE statement for t: columns in
// declaration order, then keys.
func CreateTableSQL(t *schema.TableSpec) string {
	var defs []string
	for _, c := range t.Columns() {
		defs = append(defs, c.Render())
	}
	for _, k := range t.Keys() {
		defs = append(defs, k.Render())
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(schema.QuoteIdent(t.Name))
	b.WriteString(" (")
	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")
	if t.Engine != "" {
		b.WriteString(" ENGINE=")
		b.WriteString(t.Engine)
	}
	if t.Charset != "" {
		b.WriteString(" DEFAULT CHARSET=")
		b.WriteString(t.Charset)
	}
	return b.String()
}

// Stage plans t and queues its statements for Commit.
func (s *Synchronizer) Stage(ctx context.Context, t *schema.TableSpec) error {
	stmts, err := s.Plan(ctx, t)
	if err != nil {
		return err
	}
	if len(stmts) > 0 {
		s.logger.Debug("staged table changes", "module", t.Module, "table", t.Name, "statements", len(stmts))
	}
	s.staged = append(s.staged, stmts...)
	return nil
}

// Staged returns the statements waiting for Commit.
func (s *Synchronizer) Staged() []Statement {
	return append([]Statement(nil), s.staged...)
}

// Commit executes (or captures) every staged statement in order. The first
// failure stops the commit; statements already executed stay applied.
func (s *Synchronizer) Commit(ctx context.Context) error {
	const op = "ddl.(Synchronizer).Commit"
	staged := s.staged
	s.staged = nil
	for _, st := range staged {
		if s.mode == ModeCapture {
			s.captured = append(s.captured, st.SQL)
			continue
		}
		if s.exec == nil {
			return errors.New(errors.Configuration, op, "no executor configured for live mode")
		}
		s.logger.Info("executing ddl", "table", st.Table, "sql", st.SQL)
		err := s.exec.Exec(ctx, st.SQL)
		s.reader.Invalidate(st.Table)
		if err != nil {
			return errors.Wrap(err, errors.DDLExecution, op, "table "+st.Table+": "+st.SQL)
		}
		s.executed++
	}
	return nil
}

// Sync stages and commits a single table.
func (s *Synchronizer) Sync(ctx context.Context, t *schema.TableSpec) error {
	if err := s.Stage(ctx, t); err != nil {
		return err
	}
	return s.Commit(ctx)
}

// Executed returns the number of statements executed in live mode.
func (s *Synchronizer) Executed() int {
	return s.executed
}

// Captured returns the statements captured in ModeCapture.
func (s *Synchronizer) Captured() []string {
	return append([]string(nil), s.captured...)
}

// Script returns the captured statements as one semicolon-joined script.
func (s *Synchronizer) Script() string {
	if len(s.captured) == 0 {
		return ""
	}
	return strings.Join(s.captured, ";\n") + ";\n"
}
