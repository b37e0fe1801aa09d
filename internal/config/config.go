// Package config loads runner settings from an optional YAML file and the
// environment. Environment values override the file.
package config

import (
	"bufio"
	stderrors "errors"
	"io/fs"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/shepherrrd/schemasync/internal/drivers"
	"github.com/shepherrrd/schemasync/internal/errors"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. SCHEMASYNC_DSN.
	EnvPrefix = "SCHEMASYNC"
	// DefaultFile is read when no file is named and it exists.
	DefaultFile = "schemasync.yaml"
)

type Config struct {
	DSN                string   `yaml:"dsn" envconfig:"DSN"`
	Driver             string   `yaml:"driver" envconfig:"DRIVER"`
	LogLevel           string   `yaml:"log_level" envconfig:"LOG_LEVEL"`
	GormLogLevel       string   `yaml:"gorm_log_level" envconfig:"GORM_LOG_LEVEL"`
	ModulesDir         string   `yaml:"modules_dir" envconfig:"MODULES_DIR"`
	ModuleOrder        []string `yaml:"module_order" envconfig:"MODULE_ORDER"`
	SafeMode           bool     `yaml:"safe_mode" envconfig:"SAFE_MODE"`
	IgnoreScriptErrors bool     `yaml:"ignore_script_errors" envconfig:"IGNORE_SCRIPT_ERRORS"`
}

// Load reads path (or DefaultFile when path is empty and the file exists),
// applies SCHEMASYNC_* variables, falls back to DATABASE_URL from the
// environment or a .env file for the DSN, and fills defaults.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	c := &Config{}

	file, explicit := path, path != ""
	if !explicit {
		file = DefaultFile
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrap(err, errors.Configuration, op, "parse "+file)
		}
	case explicit || !stderrors.Is(err, fs.ErrNotExist):
		return nil, errors.Wrap(err, errors.Configuration, op, "read "+file)
	}

	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, errors.Wrap(err, errors.Configuration, op, "environment")
	}
	if c.DSN == "" {
		c.DSN = databaseURL()
	}
	c.setDefaults()
	return c, c.Validate()
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = "mysql"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GormLogLevel == "" {
		c.GormLogLevel = "silent"
	}
	if c.ModulesDir == "" {
		c.ModulesDir = "modules"
	}
}

// Validate reports a missing DSN or an unknown driver.
func (c *Config) Validate() error {
	const op = "config.(Config).Validate"
	if c.DSN == "" {
		return errors.New(errors.Configuration, op, "no database connection: set SCHEMASYNC_DSN or DATABASE_URL")
	}
	if _, ok := drivers.ForName(c.Driver); !ok {
		return errors.Newf(errors.Configuration, op, "unknown driver %q", c.Driver)
	}
	return nil
}

// databaseURL returns DATABASE_URL from the environment, else from a .env
// file in the working directory.
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	f, err := os.Open(".env")
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "DATABASE_URL="); ok {
			return strings.Trim(v, `"'`)
		}
	}
	return ""
}
