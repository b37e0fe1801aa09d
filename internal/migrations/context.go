package migrations

import (
	"context"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/shepherrrd/schemasync/internal/ledger"
	"github.com/shepherrrd/schemasync/internal/manifest"
	"github.com/shepherrrd/schemasync/internal/schema"
)

// MigrationContext is the state of one run: the table registry, the live
// schema cache and the ledger reads made so far. Nothing outlives the run.
type MigrationContext struct {
	RunID    string
	Registry *schema.Registry
	Reader   schema.LiveSchemaReader

	ledger    ledger.Ledger
	logger    hclog.Logger
	versions  map[string]string
	applied   map[string]map[string]bool
	manifests map[string][]manifest.Entry
}

func newMigrationContext(l ledger.Ledger, logger hclog.Logger) *MigrationContext {
	runID := uuid.NewString()
	return &MigrationContext{
		RunID:     runID,
		Registry:  schema.NewRegistry(),
		ledger:    l,
		logger:    logger.With("run_id", runID),
		versions:  make(map[string]string),
		applied:   make(map[string]map[string]bool),
		manifests: make(map[string][]manifest.Entry),
	}
}

func (mc *MigrationContext) storedVersion(ctx context.Context, module string) (string, error) {
	if v, ok := mc.versions[module]; ok {
		return v, nil
	}
	v, err := mc.ledger.ModuleVersion(ctx, module)
	if err != nil {
		return "", err
	}
	mc.versions[module] = v
	return v, nil
}

func (mc *MigrationContext) appliedUpdates(ctx context.Context, module string) (map[string]bool, error) {
	if a, ok := mc.applied[module]; ok {
		return a, nil
	}
	a, err := mc.ledger.AppliedUpdates(ctx, module)
	if err != nil {
		return nil, err
	}
	mc.applied[module] = a
	return a, nil
}

func (mc *MigrationContext) recordUpdate(ctx context.Context, module, id string) error {
	if err := mc.ledger.RecordUpdate(ctx, module, id, mc.RunID); err != nil {
		return err
	}
	mc.applied[module][id] = true
	return nil
}
