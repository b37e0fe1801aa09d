// Package command implements the schemasync CLI commands.
package command

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"gorm.io/gorm"

	"github.com/shepherrrd/schemasync/internal/config"
	"github.com/shepherrrd/schemasync/internal/drivers"
	"github.com/shepherrrd/schemasync/internal/errors"
	"github.com/shepherrrd/schemasync/internal/migrations"
)

// Meta is shared by every command.
type Meta struct {
	UI cli.Ui
	// Modules are registered ahead of the modules found in the modules
	// directory; programs embedding the CLI declare code schemas here.
	Modules []migrations.Module
	// LogOutput receives the structured log; stderr when nil.
	LogOutput io.Writer
}

// Commands returns the command table for cli.CLI.
func Commands(m *Meta) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"migrate": func() (cli.Command, error) { return &MigrateCommand{Meta: m}, nil },
		"export":  func() (cli.Command, error) { return &ExportCommand{Meta: m}, nil },
		"pending": func() (cli.Command, error) { return &PendingCommand{Meta: m}, nil },
		"status":  func() (cli.Command, error) { return &StatusCommand{Meta: m}, nil },
	}
}

// flags holds the options every command accepts.
type flags struct {
	configPath   string
	safe         bool
	ignoreErrors bool
	dryRun       bool
}

func (m *Meta) flagSet(name string, f *flags, withRunFlags bool) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.configPath, "config", "", "")
	if withRunFlags {
		fs.BoolVar(&f.safe, "safe", false, "")
		fs.BoolVar(&f.ignoreErrors, "ignore-errors", false, "")
		fs.BoolVar(&f.dryRun, "dry-run", false, "")
	}
	return fs
}

const commonHelp = `
  -config=<path>      YAML config file (default schemasync.yaml if present).
                      SCHEMASYNC_* variables override it; DATABASE_URL or
                      a .env file supplies the DSN when none is set.
`

// session is an open database with a runner over every known module.
type session struct {
	cfg    *config.Config
	db     *gorm.DB
	runner *migrations.Runner
	logger hclog.Logger
}

func (s *session) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (m *Meta) open(f *flags) (*session, error) {
	const op = "command.(Meta).open"
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	out := m.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "schemasync",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: out,
	})

	driver, ok := drivers.ForName(cfg.Driver)
	if !ok {
		return nil, errors.Newf(errors.Configuration, op, "unknown driver %q", cfg.Driver)
	}
	db, err := driver.ConnectWithLogger(cfg.DSN, logger, cfg.GormLogLevel)
	if err != nil {
		return nil, errors.Wrap(err, errors.Configuration, op, "connect")
	}

	s := &session{cfg: cfg, db: db, logger: logger}

	mods := append([]migrations.Module(nil), m.Modules...)
	if st, err := os.Stat(cfg.ModulesDir); err == nil && st.IsDir() {
		found, err := migrations.DiscoverModules(os.DirFS(cfg.ModulesDir))
		if err != nil {
			s.Close()
			return nil, err
		}
		mods = append(mods, found...)
	} else {
		logger.Debug("no modules directory", "path", cfg.ModulesDir)
	}

	s.runner, err = migrations.NewRunner(db, driver,
		migrations.WithModules(mods...),
		migrations.WithModuleOrder(cfg.ModuleOrder...),
		migrations.WithSafeMode(cfg.SafeMode || f.safe),
		migrations.WithIgnoreScriptErrors(cfg.IgnoreScriptErrors || f.ignoreErrors),
		migrations.WithDryRun(f.dryRun),
		migrations.WithLogger(logger),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// moduleArg returns the optional single module argument.
func moduleArg(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("expected at most one module, got %d arguments", len(args))
	}
}

func (m *Meta) fail(err error) int {
	m.UI.Error(fmt.Sprintf("Error: %s", err))
	return 1
}
