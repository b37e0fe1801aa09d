package schema

import (
	"fmt"
	"strings"

	"github.com/shepherrrd/schemasync/internal/errors"
)

const (
	DefaultEngine  = "InnoDB"
	DefaultCharset = "utf8mb4"
)

// TableSpec is the declared structure of one table. Columns and keys keep
// declaration order, which is the order DDL is emitted in. A TableSpec is
// mutable until it is finalized.
type TableSpec struct {
	Name    string
	Module  string
	Engine  string
	Charset string

	columns  []*ColumnSpec
	colIndex map[string]int
	keys     []*KeySpec
	keyIndex map[string]int

	finalized   bool
	finalizeErr error
	errs        []error
}

// NewTable returns an empty TableSpec owned by module.
func NewTable(module, name string) *TableSpec {
	return &TableSpec{
		Name:     name,
		Module:   module,
		Engine:   DefaultEngine,
		Charset:  DefaultCharset,
		colIndex: make(map[string]int),
		keyIndex: make(map[string]int),
	}
}

// Column declares a column. Declaring an existing name replaces the column
// in place.
func (t *TableSpec) Column(name string, typ Type, size ...int) *ColumnSpec {
	c := NewColumn(name, typ, size...)
	if t.mutationErr("column " + name) {
		return c
	}
	if c.err != nil {
		t.errs = append(t.errs, c.err)
	}
	if i, ok := t.colIndex[name]; ok {
		t.columns[i] = c
		return c
	}
	t.colIndex[name] = len(t.columns)
	t.columns = append(t.columns, c)
	return c
}

// PrimaryKey declares the primary key over columns.
func (t *TableSpec) PrimaryKey(columns ...string) *KeySpec {
	return t.putKey(&KeySpec{Name: PrimaryKeyName, Columns: columns, Kind: KeyPrimary})
}

// AddKey declares a plain key; chain Unique to make it unique. An empty
// name takes the first column's name, and no columns means the key covers
// the column called name.
func (t *TableSpec) AddKey(name string, columns ...string) *KeySpec {
	if len(columns) == 0 && name != "" {
		columns = []string{name}
	}
	if name == "" && len(columns) > 0 {
		name = columns[0]
	}
	return t.putKey(&KeySpec{Name: name, Columns: columns, Kind: KeyPlain})
}

func (t *TableSpec) putKey(k *KeySpec) *KeySpec {
	if t.mutationErr("key " + k.Name) {
		return k
	}
	if i, ok := t.keyIndex[k.Name]; ok {
		t.keys[i] = k
		return k
	}
	t.keyIndex[k.Name] = len(t.keys)
	t.keys = append(t.keys, k)
	return k
}

// Footprints adds the created/updated audit columns and their keys.
func (t *TableSpec) Footprints() *TableSpec {
	t.Column("created_on", TypeDateTime).Nullable()
	t.Column("created_by", TypeInteger).Nullable()
	t.Column("updated_on", TypeDateTime).Nullable()
	t.Column("updated_by", TypeInteger).Nullable()
	t.AddKey("created_on")
	t.AddKey("updated_on")
	return t
}

func (t *TableSpec) mutationErr(what string) bool {
	if !t.finalized {
		return false
	}
	t.errs = append(t.errs, fmt.Errorf("%s declared after table %q was finalized", what, t.Name))
	return true
}

// Columns returns the columns in declaration order.
func (t *TableSpec) Columns() []*ColumnSpec {
	return append([]*ColumnSpec(nil), t.columns...)
}

// Keys returns the keys in declaration order.
func (t *TableSpec) Keys() []*KeySpec {
	return append([]*KeySpec(nil), t.keys...)
}

// LookupColumn returns the named column.
func (t *TableSpec) LookupColumn(name string) (*ColumnSpec, bool) {
	i, ok := t.colIndex[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// LookupKey returns the named key.
func (t *TableSpec) LookupKey(name string) (*KeySpec, bool) {
	i, ok := t.keyIndex[name]
	if !ok {
		return nil, false
	}
	return t.keys[i], true
}

// Finalized reports whether the table has been finalized.
func (t *TableSpec) Finalized() bool {
	return t.finalized
}

// finalize promotes a single-column integer primary key to auto-increment
// and forces primary key columns NOT NULL. Extension hooks must already
// have run.
func (t *TableSpec) finalize() error {
	if t.finalized {
		return t.finalizeErr
	}
	if pk, ok := t.LookupKey(PrimaryKeyName); ok {
		for _, name := range pk.Columns {
			if c, ok := t.LookupColumn(name); ok {
				c.IsNullable = false
			}
		}
		if len(pk.Columns) == 1 {
			if c, ok := t.LookupColumn(pk.Columns[0]); ok && c.Type == TypeInteger {
				c.IsAutoIncrement = true
			}
		}
	}
	t.finalized = true
	t.finalizeErr = t.Validate()
	return t.finalizeErr
}

// Validate reports configuration errors: a missing name, no columns,
// declaration errors or keys over undeclared columns.
func (t *TableSpec) Validate() error {
	const op = "schema.(TableSpec).Validate"
	if t.Name == "" {
		return errors.Newf(errors.Configuration, op, "table of module %q has no name", t.Module)
	}
	if len(t.columns) == 0 {
		return errors.Newf(errors.Configuration, op, "table %q has no columns", t.Name)
	}
	var problems []string
	for _, err := range t.errs {
		problems = append(problems, err.Error())
	}
	for _, k := range t.keys {
		if len(k.Columns) == 0 {
			problems = append(problems, fmt.Sprintf("key %q has no columns", k.Name))
		}
		for _, c := range k.Columns {
			if _, ok := t.colIndex[c]; !ok {
				problems = append(problems, fmt.Sprintf("key %q references undeclared column %q", k.Name, c))
			}
		}
	}
	if len(problems) > 0 {
		return errors.Newf(errors.Configuration, op, "table %q: %s", t.Name, strings.Join(problems, "; "))
	}
	return nil
}
