package drivers

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm/logger"
)

// newGormLogger routes gorm's SQL log through an hclog logger. logLevel is
// one of silent, error, warn or info; anything else is silent.
func newGormLogger(l hclog.Logger, logLevel string) logger.Interface {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	var level logger.LogLevel
	switch logLevel {
	case "info":
		level = logger.Info
	case "warn":
		level = logger.Warn
	case "error":
		level = logger.Error
	default:
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(
		l.Named("gorm").StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// ForName returns the driver registered under name.
func ForName(name string) (DatabaseDriver, bool) {
	switch name {
	case "mysql", "mariadb":
		return NewMySQLDriver(), true
	case "postgres", "postgresql":
		return NewPostgreSQLDriver(), true
	case "sqlite", "sqlite3":
		return NewSQLiteDriver(), true
	default:
		return nil, false
	}
}
