package models

import (
	"time"
)

// ModuleVersion is the stored version of one module.
type ModuleVersion struct {
	ModuleID string `gorm:"primaryKey;type:varchar(100)"`
	Version  string `gorm:"column:version_str;type:varchar(50);not null;default:''"`
	// LegacyVersion is kept from older installs and never interpreted.
	LegacyVersion *int64
	UpdatedAt     time.Time
}

func (ModuleVersion) TableName() string {
	return "schema_module_versions"
}

// AppliedUpdate records one update applied to a module. Rows are never
// updated or deleted.
type AppliedUpdate struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ModuleID  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_applied_module_update"`
	UpdateID  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_applied_module_update"`
	AppliedAt time.Time `gorm:"not null"`
	RunID     string    `gorm:"type:varchar(36);index"`
}

func (AppliedUpdate) TableName() string {
	return "schema_applied_updates"
}

// VersionHistory is an audit row for each version a module advanced over.
type VersionHistory struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ModuleID    string `gorm:"type:varchar(100);not null;index"`
	Version     string `gorm:"type:varchar(50);not null"`
	Build       string `gorm:"type:varchar(50)"`
	Description string `gorm:"type:text"`
	AppliedAt   time.Time
	RunID       string `gorm:"type:varchar(36)"`
}

func (VersionHistory) TableName() string {
	return "schema_version_history"
}
