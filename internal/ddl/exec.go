package ddl

import (
	"context"

	"gorm.io/gorm"
)

// GormExecutor runs statements through db, each in its own implicit
// transaction.
func GormExecutor(db *gorm.DB) Executor {
	return ExecFunc(func(ctx context.Context, stmt string) error {
		return db.WithContext(ctx).Exec(stmt).Error
	})
}
