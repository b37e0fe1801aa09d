package schema

import (
	"fmt"
	"sort"

	"github.com/shepherrrd/schemasync/internal/errors"
)

// ExtendFunc mutates a table declared by another module before it is
// finalized.
type ExtendFunc func(t *TableSpec) error

type extension struct {
	module string
	fn     ExtendFunc
}

// Registry holds every TableSpec declared during one run together with the
// extension hooks registered against table names.
type Registry struct {
	tables []*TableSpec
	byName map[string]*TableSpec
	hooks  map[string][]extension
	fired  map[string]bool
	errs   []error
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*TableSpec),
		hooks:  make(map[string][]extension),
		fired:  make(map[string]bool),
	}
}

// Builder is the declaration API handed to one module's schema callback.
type Builder struct {
	module string
	r      *Registry
}

// Builder returns the declaration API bound to module.
func (r *Registry) Builder(module string) *Builder {
	return &Builder{module: module, r: r}
}

// Module returns the id of the module declaring through b.
func (b *Builder) Module() string {
	return b.module
}

// Table returns the module's TableSpec for name, creating it on first use.
// A name already owned by another module is a configuration error; such
// changes belong in an extension hook.
func (b *Builder) Table(name string) *TableSpec {
	if t, ok := b.r.byName[name]; ok {
		if t.Module == b.module {
			return t
		}
		b.r.errs = append(b.r.errs, errors.Newf(errors.Configuration, "schema.(Builder).Table",
			"module %q declares table %q owned by module %q; use an extension hook", b.module, name, t.Module))
		return NewTable(b.module, name)
	}
	t := NewTable(b.module, name)
	b.r.byName[name] = t
	b.r.tables = append(b.r.tables, t)
	return t
}

// Extend registers fn to run against table name before it is finalized.
// Hooks run in registration order.
func (b *Builder) Extend(table string, fn ExtendFunc) {
	b.r.hooks[table] = append(b.r.hooks[table], extension{module: b.module, fn: fn})
}

// Err returns the declaration errors collected so far.
func (r *Registry) Err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[0]
}

// Tables returns every declared table in declaration order.
func (r *Registry) Tables() []*TableSpec {
	return append([]*TableSpec(nil), r.tables...)
}

// TablesOf returns the tables owned by module.
func (r *Registry) TablesOf(module string) []*TableSpec {
	var out []*TableSpec
	for _, t := range r.tables {
		if t.Module == module {
			out = append(out, t)
		}
	}
	return out
}

// Lookup returns the table declared under name.
func (r *Registry) Lookup(name string) (*TableSpec, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// UndeclaredExtensions returns, sorted, the table names that have extension
// hooks but were never declared. Those hooks never fire.
func (r *Registry) UndeclaredExtensions() []string {
	var out []string
	for name := range r.hooks {
		if _, ok := r.byName[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Finalize fires the extension hooks for t exactly once, then finalizes
// it. Calling Finalize again returns the first result.
func (r *Registry) Finalize(t *TableSpec) error {
	const op = "schema.(Registry).Finalize"
	if t.finalized {
		return t.finalizeErr
	}
	if !r.fired[t.Name] {
		r.fired[t.Name] = true
		for _, ext := range r.hooks[t.Name] {
			if err := ext.fn(t); err != nil {
				t.finalized = true
				t.finalizeErr = errors.Wrap(err, errors.Configuration, op,
					fmt.Sprintf("extension of table %q by module %q", t.Name, ext.module))
				return t.finalizeErr
			}
		}
	}
	return t.finalize()
}
