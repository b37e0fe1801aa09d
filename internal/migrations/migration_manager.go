// Package migrations runs modules through schema synchronization and then
// through their versioned updates, recording progress in the ledger.
package migrations

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io/fs"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/shepherrrd/schemasync/internal/ddl"
	"github.com/shepherrrd/schemasync/internal/drivers"
	"github.com/shepherrrd/schemasync/internal/errors"
	"github.com/shepherrrd/schemasync/internal/ledger"
	"github.com/shepherrrd/schemasync/internal/manifest"
	"github.com/shepherrrd/schemasync/internal/models"
	"github.com/shepherrrd/schemasync/internal/schema"
	"github.com/shepherrrd/schemasync/internal/updates"
)

// Option configures a Runner.
type Option func(*Runner)

// WithModules registers modules in the given order.
func WithModules(mods ...Module) Option {
	return func(r *Runner) {
		for i := range mods {
			m := mods[i]
			r.modules = append(r.modules, &m)
		}
	}
}

// WithSchema attaches a schema callback to the module with the given id,
// typically one found by DiscoverModules.
func WithSchema(id string, fn SchemaFunc) Option {
	return func(r *Runner) { r.schemas = append(r.schemas, attachedSchema{id: id, fn: fn}) }
}

// WithModuleOrder overrides the order of application modules.
func WithModuleOrder(ids ...string) Option {
	return func(r *Runner) { r.order = ids }
}

// WithSafeMode never drops columns or undeclared keys.
func WithSafeMode(safe bool) Option {
	return func(r *Runner) { r.safe = safe }
}

// WithIgnoreScriptErrors logs failed updates and leaves them for the next
// run instead of aborting.
func WithIgnoreScriptErrors(ignore bool) Option {
	return func(r *Runner) { r.ignoreErrors = ignore }
}

// WithDryRun captures DDL instead of executing it and applies no updates;
// the report lists what a live run would apply.
func WithDryRun(dry bool) Option {
	return func(r *Runner) { r.dryRun = dry }
}

func WithLedger(l ledger.Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithSchemaReader replaces the information_schema reader.
func WithSchemaReader(rd schema.LiveSchemaReader) Option {
	return func(r *Runner) { r.reader = rd }
}

// WithExecutor replaces the executor DDL runs through.
func WithExecutor(e ddl.Executor) Option {
	return func(r *Runner) { r.exec = e }
}

func WithLogger(l hclog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

type attachedSchema struct {
	id string
	fn SchemaFunc
}

// Runner synchronizes and migrates a set of modules. A Runner may be used
// for several runs; no state is shared between them.
type Runner struct {
	db     *gorm.DB
	driver drivers.DatabaseDriver
	ledger ledger.Ledger
	reader schema.LiveSchemaReader
	exec   ddl.Executor
	logger hclog.Logger

	modules      []*Module
	schemas      []attachedSchema
	order        []string
	safe         bool
	ignoreErrors bool
	dryRun       bool
}

// NewRunner returns a Runner on db. A nil driver is looked up from the gorm
// dialector name.
func NewRunner(db *gorm.DB, driver drivers.DatabaseDriver, opt ...Option) (*Runner, error) {
	const op = "migrations.NewRunner"
	if db == nil {
		return nil, errors.New(errors.Configuration, op, "missing database")
	}
	if driver == nil {
		d, ok := drivers.ForName(db.Dialector.Name())
		if !ok {
			return nil, errors.Newf(errors.Unsupported, op, "no driver for dialect %q", db.Dialector.Name())
		}
		driver = d
	}
	r := &Runner{db: db, driver: driver, logger: hclog.NewNullLogger()}
	for _, o := range opt {
		o(r)
	}
	r.logger = r.logger.Named("runner")
	if r.ledger == nil {
		r.ledger = ledger.NewGormLedger(db, r.logger)
	}
	if r.exec == nil {
		r.exec = ddl.GormExecutor(db)
	}

	seen := make(map[string]bool, len(r.modules))
	for _, m := range r.modules {
		if m.ID == "" {
			return nil, errors.New(errors.Configuration, op, "module without id")
		}
		if seen[m.ID] {
			return nil, errors.Newf(errors.Configuration, op, "module %q registered twice", m.ID)
		}
		seen[m.ID] = true
	}
	for _, s := range r.schemas {
		m := r.lookup(s.id)
		if m == nil {
			return nil, errors.Newf(errors.Configuration, op, "schema attached to unknown module %q", s.id)
		}
		m.Schema = s.fn
	}
	return r, nil
}

func (r *Runner) lookup(id string) *Module {
	for _, m := range r.modules {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Modules returns the module ids in run order.
func (r *Runner) Modules() []string {
	mods, unknown := orderModules(r.modules, r.order)
	if len(unknown) > 0 {
		r.logger.Warn("module order names unknown modules", "modules", strings.Join(unknown, ","))
	}
	ids := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = m.ID
	}
	return ids
}

// AppliedUpdate is one update applied during a run.
type AppliedUpdate struct {
	Module string
	Update string
}

// Report summarises one run.
type Report struct {
	RunID string
	// Staged counts DDL statements planned; Executed those run.
	Staged   int
	Executed int
	// Script holds the captured DDL of a dry run or export.
	Script  string
	Applied []AppliedUpdate
	// Pending lists, per module, the updates a dry run would apply.
	Pending map[string][]string
	// Skipped aggregates the update failures ignored in ignore mode.
	Skipped *multierror.Error
	// Versions maps each processed module to its stored version.
	Versions map[string]string
}

// Run synchronizes and migrates every module.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	return r.run(ctx, nil, r.dryRun, false)
}

// RunModule synchronizes and migrates one module. Every module still
// declares its tables so extension hooks aimed at the module's tables fire.
func (r *Runner) RunModule(ctx context.Context, id string) (*Report, error) {
	return r.run(ctx, []string{id}, r.dryRun, false)
}

// Export returns the DDL that would bring the selected modules' tables (all
// when ids is empty) in line with their declarations, without executing it.
func (r *Runner) Export(ctx context.Context, ids ...string) (string, error) {
	rep, err := r.run(ctx, ids, true, true)
	if err != nil {
		return "", err
	}
	return rep.Script, nil
}

// Pending returns, per module, the update ids the next run would apply.
// It performs no DDL.
func (r *Runner) Pending(ctx context.Context, ids ...string) (map[string][]string, error) {
	const op = "migrations.(Runner).Pending"
	selected, err := r.selectModules(ids)
	if err != nil {
		return nil, err
	}
	if err := r.ledger.Ensure(ctx); err != nil {
		return nil, err
	}
	mc := newMigrationContext(r.ledger, r.logger)
	if err := r.parseManifests(mc, selected); err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, m := range selected {
		ids, err := r.pendingFor(ctx, mc, m)
		if err != nil {
			return nil, errors.Wrap(err, errors.Unknown, op, m.ID)
		}
		if len(ids) > 0 {
			out[m.ID] = ids
		}
	}
	return out, nil
}

// Versions returns the stored version of every module in the ledger.
func (r *Runner) Versions(ctx context.Context) ([]models.ModuleVersion, error) {
	if err := r.ledger.Ensure(ctx); err != nil {
		return nil, err
	}
	return r.ledger.Versions(ctx)
}

func (r *Runner) selectModules(ids []string) ([]*Module, error) {
	ordered, unknown := orderModules(r.modules, r.order)
	if len(unknown) > 0 {
		r.logger.Warn("module order names unknown modules", "modules", strings.Join(unknown, ","))
	}
	if len(ids) == 0 {
		return ordered, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r.lookup(id) == nil {
			return nil, errors.Newf(errors.Configuration, "migrations.(Runner).selectModules", "unknown module %q", id)
		}
		want[id] = true
	}
	var out []*Module
	for _, m := range ordered {
		if want[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *Runner) run(ctx context.Context, ids []string, capture, schemaOnly bool) (*Report, error) {
	selected, err := r.selectModules(ids)
	if err != nil {
		return nil, err
	}
	all, _ := orderModules(r.modules, r.order)

	mc := newMigrationContext(r.ledger, r.logger)
	rep := &Report{RunID: mc.RunID, Versions: make(map[string]string)}
	mc.logger.Info("run started", "modules", len(selected), "dry_run", capture)

	if err := r.syncSchema(ctx, mc, all, selected, capture, rep); err != nil {
		return rep, err
	}
	if schemaOnly {
		return rep, nil
	}

	if err := r.ledger.Ensure(ctx); err != nil {
		return rep, err
	}
	if err := r.parseManifests(mc, selected); err != nil {
		return rep, err
	}
	if capture {
		rep.Pending = make(map[string][]string)
		for _, m := range selected {
			ids, err := r.pendingFor(ctx, mc, m)
			if err != nil {
				return rep, err
			}
			if len(ids) > 0 {
				rep.Pending[m.ID] = ids
			}
		}
		return rep, nil
	}

	sqlDB, err := r.driver.GetSQLDB(r.db)
	if err != nil {
		return rep, errors.Wrap(err, errors.Configuration, "migrations.(Runner).run", "get sql.DB")
	}
	for _, m := range selected {
		err := r.applyUpdates(ctx, mc, m, sqlDB, rep)
		if v, ok := mc.versions[m.ID]; ok {
			rep.Versions[m.ID] = v
		}
		if err != nil {
			mc.logger.Error("run aborted", "module", m.ID, "error", err)
			return rep, err
		}
	}
	mc.logger.Info("run finished", "executed", rep.Executed, "applied", len(rep.Applied))
	if rep.Skipped != nil {
		mc.logger.Warn("run finished with skipped updates", "skipped", len(rep.Skipped.Errors))
	}
	return rep, nil
}

// syncSchema declares every module's tables, so that hooks from modules
// outside the selection still fire, then stages the selected modules'
// tables and commits them in one pass.
func (r *Runner) syncSchema(ctx context.Context, mc *MigrationContext, all, selected []*Module, capture bool, rep *Report) error {
	const op = "migrations.(Runner).syncSchema"
	for _, m := range all {
		if m.Schema == nil {
			continue
		}
		if err := m.Schema(mc.Registry.Builder(m.ID)); err != nil {
			return errors.Wrap(err, errors.Configuration, op, "schema of module "+m.ID)
		}
	}
	if err := mc.Registry.Err(); err != nil {
		return err
	}
	for _, name := range mc.Registry.UndeclaredExtensions() {
		mc.logger.Warn("extension hooks target a table no module declares", "table", name)
	}

	var tables []*schema.TableSpec
	for _, m := range selected {
		tables = append(tables, mc.Registry.TablesOf(m.ID)...)
	}
	if len(tables) == 0 {
		return nil
	}

	reader := r.reader
	if reader == nil {
		rd, err := schema.NewDBReader(r.db, r.driver)
		if err != nil {
			return err
		}
		reader = rd
	}
	mc.Reader = reader

	mode := ddl.ModeLive
	if capture {
		mode = ddl.ModeCapture
	}
	sync := ddl.New(reader, r.exec, ddl.WithSafeMode(r.safe), ddl.WithMode(mode), ddl.WithLogger(mc.logger))
	for _, t := range tables {
		if err := mc.Registry.Finalize(t); err != nil {
			return err
		}
		if err := sync.Stage(ctx, t); err != nil {
			return err
		}
	}
	rep.Staged = len(sync.Staged())
	err := sync.Commit(ctx)
	rep.Executed = sync.Executed()
	rep.Script = sync.Script()
	if err != nil {
		return err
	}
	mc.logger.Info("schema synchronized", "tables", len(tables), "staged", rep.Staged, "executed", rep.Executed)
	return nil
}

// parseManifests parses every selected manifest up front so a malformed
// one stops the run before any update applies.
func (r *Runner) parseManifests(mc *MigrationContext, mods []*Module) error {
	const op = "migrations.(Runner).parseManifests"
	for _, m := range mods {
		if m.Manifest == nil {
			continue
		}
		f, err := m.Manifest.Open(m.manifestPath())
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrap(err, errors.ManifestParse, op, "module "+m.ID)
		}
		entries, err := manifest.Parse(f)
		f.Close()
		if err != nil {
			return errors.Wrap(err, errors.ManifestParse, op, "module "+m.ID)
		}
		mc.manifests[m.ID] = entries
	}
	return nil
}

func (r *Runner) pendingFor(ctx context.Context, mc *MigrationContext, m *Module) ([]string, error) {
	entries, ok := mc.manifests[m.ID]
	if !ok {
		return nil, nil
	}
	stored, err := mc.storedVersion(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	applied, err := mc.appliedUpdates(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return planUpdates(entries, stored).pending(applied), nil
}

// applyUpdates applies the module's outstanding updates and advances its
// stored version to the last version whose updates, and everything before
// them, were applied.
func (r *Runner) applyUpdates(ctx context.Context, mc *MigrationContext, m *Module, db *sql.DB, rep *Report) error {
	const op = "migrations.(Runner).applyUpdates"
	entries, ok := mc.manifests[m.ID]
	if !ok {
		return nil
	}
	stored, err := mc.storedVersion(ctx, m.ID)
	if err != nil {
		return err
	}
	applied, err := mc.appliedUpdates(ctx, m.ID)
	if err != nil {
		return err
	}
	src := m.Updates
	if src == nil {
		src = updates.NewFuncSource(nil)
	}

	plan := planUpdates(entries, stored)
	if plan.legacyTarget != "" {
		mc.logger.Warn("stored version not in manifest, replaying references only", "module", m.ID, "version", stored)
	}

	var (
		reached = stored
		history []models.VersionHistory
		failed  = make(map[string]bool)
		fatal   error
	)
walk:
	for _, s := range plan.steps {
		for _, id := range s.ids {
			if applied[id] || failed[id] {
				continue
			}
			log := mc.logger.With("module", m.ID, "update", id)
			log.Info("applying update", "sql", src.HasSQLScript(id), "script", src.HasImperativeScript(id))
			if err := src.Apply(ctx, db, id); err != nil {
				err = errors.Wrap(err, errors.UpdateScript, op, "module "+m.ID+" update "+id)
				if !r.ignoreErrors {
					fatal = err
					break walk
				}
				log.Warn("update failed, leaving it for the next run", "error", err)
				rep.Skipped = multierror.Append(rep.Skipped, err)
				failed[id] = true
				continue
			}
			if err := mc.recordUpdate(ctx, m.ID, id); err != nil {
				fatal = err
				break walk
			}
			rep.Applied = append(rep.Applied, AppliedUpdate{Module: m.ID, Update: id})
		}
		if s.version != nil && len(failed) == 0 {
			reached = s.version.Version
			history = append(history, models.VersionHistory{
				Version:     s.version.Version,
				Build:       s.version.Build,
				Description: s.version.Description,
				RunID:       mc.RunID,
			})
		}
	}
	if fatal == nil && len(failed) == 0 && plan.legacyTarget != "" {
		reached = plan.legacyTarget
	}

	if reached != stored {
		if err := r.ledger.AdvanceVersion(ctx, m.ID, reached, history); err != nil {
			if fatal == nil {
				fatal = err
			}
		} else {
			mc.versions[m.ID] = reached
		}
	}
	return fatal
}
