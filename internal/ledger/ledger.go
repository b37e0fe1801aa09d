// Package ledger persists per-module versions, the append-only log of
// applied updates and the version history audit trail.
package ledger

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shepherrrd/schemasync/internal/errors"
	"github.com/shepherrrd/schemasync/internal/models"
)

// Ledger is the persisted migration state.
type Ledger interface {
	// Ensure creates the ledger tables when missing.
	Ensure(ctx context.Context) error
	// ModuleVersion returns the stored version, or "" for a module never
	// migrated.
	ModuleVersion(ctx context.Context, module string) (string, error)
	// AppliedUpdates returns the set of update ids applied to module.
	AppliedUpdates(ctx context.Context, module string) (map[string]bool, error)
	// RecordUpdate appends one applied update.
	RecordUpdate(ctx context.Context, module, updateID, runID string) error
	// AdvanceVersion stores version for module and appends history rows in
	// one transaction.
	AdvanceVersion(ctx context.Context, module, version string, history []models.VersionHistory) error
	// Versions returns every stored module version.
	Versions(ctx context.Context) ([]models.ModuleVersion, error)
}

// GormLedger keeps the ledger in the migrated database itself.
type GormLedger struct {
	db     *gorm.DB
	logger hclog.Logger
	now    func() time.Time
}

// NewGormLedger returns a ledger on db. logger may be nil.
func NewGormLedger(db *gorm.DB, logger hclog.Logger) *GormLedger {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GormLedger{db: db, logger: logger.Named("ledger"), now: time.Now}
}

func (l *GormLedger) Ensure(ctx context.Context) error {
	err := l.db.WithContext(ctx).AutoMigrate(&models.ModuleVersion{}, &models.AppliedUpdate{}, &models.VersionHistory{})
	return errors.Wrap(err, errors.Ledger, "ledger.(GormLedger).Ensure", "create ledger tables")
}

func (l *GormLedger) ModuleVersion(ctx context.Context, module string) (string, error) {
	var rows []models.ModuleVersion
	err := l.db.WithContext(ctx).Where("module_id = ?", module).Limit(1).Find(&rows).Error
	if err != nil {
		return "", errors.Wrap(err, errors.Ledger, "ledger.(GormLedger).ModuleVersion", "module "+module)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Version, nil
}

func (l *GormLedger) AppliedUpdates(ctx context.Context, module string) (map[string]bool, error) {
	var ids []string
	err := l.db.WithContext(ctx).Model(&models.AppliedUpdate{}).
		Where("module_id = ?", module).Pluck("update_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.Ledger, "ledger.(GormLedger).AppliedUpdates", "module "+module)
	}
	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

func (l *GormLedger) RecordUpdate(ctx context.Context, module, updateID, runID string) error {
	row := models.AppliedUpdate{ModuleID: module, UpdateID: updateID, AppliedAt: l.now(), RunID: runID}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return errors.Wrap(err, errors.Ledger, "ledger.(GormLedger).RecordUpdate", module+"/"+updateID)
	}
	l.logger.Debug("recorded update", "module", module, "update", updateID, "run_id", runID)
	return nil
}

func (l *GormLedger) AdvanceVersion(ctx context.Context, module, version string, history []models.VersionHistory) error {
	now := l.now()
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.ModuleVersion{ModuleID: module, Version: version, UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "module_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"version_str", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		for i := range history {
			history[i].ModuleID = module
			if history[i].AppliedAt.IsZero() {
				history[i].AppliedAt = now
			}
		}
		if len(history) > 0 {
			return tx.Create(&history).Error
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.Ledger, "ledger.(GormLedger).AdvanceVersion", "module "+module)
	}
	l.logger.Info("module version advanced", "module", module, "version", version, "history", len(history))
	return nil
}

func (l *GormLedger) Versions(ctx context.Context) ([]models.ModuleVersion, error) {
	var rows []models.ModuleVersion
	if err := l.db.WithContext(ctx).Order("module_id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.Ledger, "ledger.(GormLedger).Versions", "")
	}
	return rows, nil
}
