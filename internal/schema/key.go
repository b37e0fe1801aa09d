package schema

import (
	"sort"
	"strings"

	"github.com/shepherrrd/schemasync/internal/drivers"
)

// KeyKind distinguishes primary, unique and plain indexes.
type KeyKind int

const (
	KeyPlain KeyKind = iota
	KeyUnique
	KeyPrimary
)

// PrimaryKeyName is the name MySQL reports for every primary key.
const PrimaryKeyName = "PRIMARY"

// KeySpec describes one index.
type KeySpec struct {
	Name    string
	Columns []string
	Kind    KeyKind
}

// Unique turns a plain key into a unique key.
func (k *KeySpec) Unique() *KeySpec {
	if k.Kind != KeyPrimary {
		k.Kind = KeyUnique
	}
	return k
}

// Render returns the canonical key definition, e.g.
// "UNIQUE KEY `email` (`email`,`tenant_id`)".
func (k *KeySpec) Render() string {
	cols := make([]string, len(k.Columns))
	for i, c := range k.Columns {
		cols[i] = QuoteIdent(c)
	}
	list := "(" + strings.Join(cols, ",") + ")"
	switch k.Kind {
	case KeyPrimary:
		return "PRIMARY KEY " + list
	case KeyUnique:
		return "UNIQUE KEY " + QuoteIdent(k.Name) + " " + list
	default:
		return "KEY " + QuoteIdent(k.Name) + " " + list
	}
}

// KeysFromLive groups per-column index rows into KeySpecs, in order of
// first appearance.
func KeysFromLive(rows []drivers.KeyInfo) []*KeySpec {
	var (
		keys  []*KeySpec
		byKey = make(map[string]*KeySpec)
		seqs  = make(map[string][]drivers.KeyInfo)
	)
	for _, row := range rows {
		k, ok := byKey[row.IndexName]
		if !ok {
			k = &KeySpec{Name: row.IndexName, Kind: KeyPlain}
			switch {
			case row.IndexName == PrimaryKeyName:
				k.Kind = KeyPrimary
			case !row.NonUnique:
				k.Kind = KeyUnique
			}
			byKey[row.IndexName] = k
			keys = append(keys, k)
		}
		seqs[row.IndexName] = append(seqs[row.IndexName], row)
	}
	for name, cols := range seqs {
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].Seq < cols[j].Seq })
		k := byKey[name]
		for _, c := range cols {
			k.Columns = append(k.Columns, c.ColumnName)
		}
	}
	return keys
}
