package schema

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherrrd/schemasync/internal/drivers"
	"github.com/shepherrrd/schemasync/internal/errors"
)

func TestKeySpec_Render(t *testing.T) {
	tbl := NewTable("crm", "contact")
	assert.Equal(t, "PRIMARY KEY (`id`)", tbl.PrimaryKey("id").Render())
	assert.Equal(t, "UNIQUE KEY `email` (`email`,`tenant_id`)", tbl.AddKey("", "email", "tenant_id").Unique().Render())
	assert.Equal(t, "KEY `by_name` (`last`,`first`)", tbl.AddKey("by_name", "last", "first").Render())
	assert.Equal(t, "KEY `created_on` (`created_on`)", tbl.AddKey("created_on").Render())
}

func TestKeySpec_UniqueKeepsPrimary(t *testing.T) {
	k := &KeySpec{Name: PrimaryKeyName, Columns: []string{"id"}, Kind: KeyPrimary}
	assert.Equal(t, KeyPrimary, k.Unique().Kind)
}

func TestKeysFromLive(t *testing.T) {
	keys := KeysFromLive([]drivers.KeyInfo{
		{IndexName: "PRIMARY", ColumnName: "id", Seq: 1},
		{IndexName: "email", ColumnName: "tenant_id", Seq: 2},
		{IndexName: "email", ColumnName: "email", Seq: 1},
		{IndexName: "name", ColumnName: "name", NonUnique: true, Seq: 1},
	})
	require.Len(t, keys, 3)
	assert.Equal(t, "PRIMARY KEY (`id`)", keys[0].Render())
	assert.Equal(t, "UNIQUE KEY `email` (`email`,`tenant_id`)", keys[1].Render())
	assert.Equal(t, "KEY `name` (`name`)", keys[2].Render())
}

func TestTableSpec_DeclarationOrder(t *testing.T) {
	tbl := NewTable("crm", "contact")
	tbl.Column("id", TypeInteger)
	tbl.Column("name", TypeVarchar, 50)
	tbl.Column("email", TypeVarchar)
	tbl.Column("name", TypeVarchar, 100)

	var names []string
	for _, c := range tbl.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "name", "email"}, names)
	c, ok := tbl.LookupColumn("name")
	require.True(t, ok)
	assert.Equal(t, 100, c.Length)
}

func TestTableSpec_Footprints(t *testing.T) {
	tbl := NewTable("crm", "contact")
	tbl.Column("id", TypeInteger)
	tbl.Footprints()

	for _, name := range []string{"created_on", "created_by", "updated_on", "updated_by"} {
		c, ok := tbl.LookupColumn(name)
		require.True(t, ok, name)
		assert.True(t, c.IsNullable, name)
	}
	_, ok := tbl.LookupKey("created_on")
	assert.True(t, ok)
	_, ok = tbl.LookupKey("updated_on")
	assert.True(t, ok)
}

func TestTableSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *TableSpec
		wantMsg string
	}{
		{
			name:    "no-name",
			build:   func() *TableSpec { t := NewTable("crm", ""); t.Column("id", TypeInteger); return t },
			wantMsg: "has no name",
		},
		{
			name:    "no-columns",
			build:   func() *TableSpec { return NewTable("crm", "empty") },
			wantMsg: `table "empty" has no columns`,
		},
		{
			name: "unknown-type",
			build: func() *TableSpec {
				t := NewTable("crm", "odd")
				t.Column("x", Type("geometry"))
				return t
			},
			wantMsg: `unknown type "geometry"`,
		},
		{
			name: "key-on-missing-column",
			build: func() *TableSpec {
				t := NewTable("crm", "contact")
				t.Column("id", TypeInteger)
				t.AddKey("email")
				return t
			},
			wantMsg: `references undeclared column "email"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.Configuration))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRegistry_FinalizePromotesIntegerPrimaryKey(t *testing.T) {
	r := NewRegistry()
	tbl := r.Builder("crm").Table("contact")
	tbl.Column("id", TypeInteger).Nullable()
	tbl.Column("name", TypeVarchar, 100)
	tbl.PrimaryKey("id")

	require.NoError(t, r.Finalize(tbl))
	id, _ := tbl.LookupColumn("id")
	assert.True(t, id.IsAutoIncrement)
	assert.False(t, id.IsNullable)
	assert.Equal(t, "`id` int(11) NOT NULL AUTO_INCREMENT", id.Render())
}

func TestRegistry_FinalizeSkipsCompositeAndNonInteger(t *testing.T) {
	r := NewRegistry()
	b := r.Builder("crm")

	composite := b.Table("tag_link")
	composite.Column("tag_id", TypeInteger)
	composite.Column("contact_id", TypeInteger)
	composite.PrimaryKey("tag_id", "contact_id")
	require.NoError(t, r.Finalize(composite))
	for _, c := range composite.Columns() {
		assert.False(t, c.IsAutoIncrement, c.Name)
	}

	code := b.Table("country")
	code.Column("code", TypeVarchar, 2)
	code.PrimaryKey("code")
	require.NoError(t, r.Finalize(code))
	c, _ := code.LookupColumn("code")
	assert.False(t, c.IsAutoIncrement)
}

// An extending module may change the primary key column's type; promotion
// must see the extended declaration.
func TestRegistry_ExtensionRunsBeforePromotion(t *testing.T) {
	r := NewRegistry()
	tbl := r.Builder("core").Table("setting")
	tbl.Column("id", TypeVarchar, 32)
	tbl.PrimaryKey("id")

	calls := 0
	r.Builder("crm").Extend("setting", func(t *TableSpec) error {
		calls++
		t.Column("id", TypeInteger)
		t.Column("crm_flag", TypeBoolean).Default("0")
		return nil
	})

	require.NoError(t, r.Finalize(tbl))
	require.NoError(t, r.Finalize(tbl))
	assert.Equal(t, 1, calls)

	id, _ := tbl.LookupColumn("id")
	assert.True(t, id.IsAutoIncrement)
	_, ok := tbl.LookupColumn("crm_flag")
	assert.True(t, ok)
	assert.True(t, tbl.Finalized())
}

func TestRegistry_UndeclaredExtensions(t *testing.T) {
	r := NewRegistry()
	r.Builder("core").Table("setting").Column("id", TypeInteger)
	noop := func(*TableSpec) error { return nil }
	r.Builder("crm").Extend("setting", noop)
	r.Builder("crm").Extend("settings", noop)
	r.Builder("billing").Extend("invoce", noop)

	assert.Equal(t, []string{"invoce", "settings"}, r.UndeclaredExtensions())
}

func TestRegistry_ExtensionError(t *testing.T) {
	r := NewRegistry()
	tbl := r.Builder("core").Table("setting")
	tbl.Column("id", TypeInteger)
	r.Builder("crm").Extend("setting", func(*TableSpec) error { return stderrors.New("nope") })

	err := r.Finalize(tbl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Configuration))
	assert.Contains(t, err.Error(), `module "crm"`)
	assert.Equal(t, err, r.Finalize(tbl))
}

func TestRegistry_MutationAfterFinalize(t *testing.T) {
	r := NewRegistry()
	tbl := r.Builder("core").Table("setting")
	tbl.Column("id", TypeInteger)
	require.NoError(t, r.Finalize(tbl))

	tbl.Column("late", TypeText)
	_, ok := tbl.LookupColumn("late")
	assert.False(t, ok)
	err := tbl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after table \"setting\" was finalized")
}

func TestRegistry_TableOwnership(t *testing.T) {
	r := NewRegistry()
	core := r.Builder("core")
	crm := r.Builder("crm")

	a := core.Table("setting")
	assert.Same(t, a, core.Table("setting"))
	assert.NoError(t, r.Err())

	crm.Table("setting")
	require.Error(t, r.Err())
	assert.True(t, errors.Is(r.Err(), errors.Configuration))

	crm.Table("contact")
	assert.Len(t, r.Tables(), 2)
	assert.Len(t, r.TablesOf("crm"), 1)
	got, ok := r.Lookup("contact")
	require.True(t, ok)
	assert.Equal(t, "crm", got.Module)
}
