package migrations

import (
	"io/fs"
	"path"

	"github.com/shepherrrd/schemasync/internal/errors"
	"github.com/shepherrrd/schemasync/internal/schema"
	"github.com/shepherrrd/schemasync/internal/updates"
)

const (
	// ManifestFile is the manifest name inside a discovered module directory.
	ManifestFile = "version.txt"
	// UpdatesDir holds a discovered module's update scripts.
	UpdatesDir = "updates"
)

// SchemaFunc declares a module's tables and registers its extension hooks.
type SchemaFunc func(b *schema.Builder) error

// Module is one independently versioned unit of schema and updates.
type Module struct {
	ID string
	// Builtin modules run before application modules, in registration
	// order, and ignore the configured module order.
	Builtin bool
	Schema  SchemaFunc
	// Manifest holds the version manifest at ManifestPath. A nil Manifest
	// means the module has no updates.
	Manifest     fs.FS
	ManifestPath string
	Updates      updates.Source
}

func (m *Module) manifestPath() string {
	if m.ManifestPath == "" {
		return ManifestFile
	}
	return m.ManifestPath
}

// DiscoverModules returns an application module for every directory of
// fsys holding a manifest, in lexical order. Each module reads its update
// scripts from its updates directory.
func DiscoverModules(fsys fs.FS) ([]Module, error) {
	const op = "migrations.DiscoverModules"
	dirs, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, errors.Wrap(err, errors.Configuration, op, "read modules directory")
	}
	var mods []Module
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if _, err := fs.Stat(fsys, path.Join(d.Name(), ManifestFile)); err != nil {
			continue
		}
		sub, err := fs.Sub(fsys, d.Name())
		if err != nil {
			return nil, errors.Wrap(err, errors.Configuration, op, d.Name())
		}
		mods = append(mods, Module{
			ID:           d.Name(),
			Manifest:     sub,
			ManifestPath: ManifestFile,
			Updates:      updates.NewDirSource(sub, UpdatesDir),
		})
	}
	return mods, nil
}

// orderModules puts builtin modules first in registration order, then
// application modules in the order given by order, then the remaining
// application modules in registration order. Ids in order that name no
// application module are returned as unknown.
func orderModules(mods []*Module, order []string) (out []*Module, unknown []string) {
	byID := make(map[string]*Module, len(mods))
	placed := make(map[string]bool, len(mods))
	for _, m := range mods {
		byID[m.ID] = m
		if m.Builtin {
			out = append(out, m)
			placed[m.ID] = true
		}
	}
	for _, id := range order {
		m, ok := byID[id]
		switch {
		case !ok:
			unknown = append(unknown, id)
		case !placed[id]:
			out = append(out, m)
			placed[id] = true
		}
	}
	for _, m := range mods {
		if !placed[m.ID] {
			out = append(out, m)
			placed[m.ID] = true
		}
	}
	return out, unknown
}
