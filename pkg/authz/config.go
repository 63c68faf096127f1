package authz

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/statreg/pkg/configuration"
)

// Config locates the casbin model and the unit write policy. Modes overrides
// the mode file; tests and authz-check pin a mode with StaticMode.
type Config struct {
	ModelPath   string
	PolicyPath  string
	ModeFile    string
	DefaultMode Mode
	Modes       ModeSource
	Logger      *logrus.Logger
}

func (c Config) validate() error {
	for _, f := range []struct{ name, path string }{
		{"model", c.ModelPath},
		{"policy", c.PolicyPath},
	} {
		if strings.TrimSpace(f.path) == "" {
			return configError("missing %s path", f.name)
		}
		if _, err := os.Stat(f.path); err != nil {
			return configError("%s file: %w", f.name, err)
		}
	}
	if c.ModeFile == "" && c.Modes == nil {
		return configError("missing mode file path")
	}
	if c.DefaultMode != "" && !knownMode(c.DefaultMode) {
		return configError("unknown mode %q, want disabled, shadow or enforce", c.DefaultMode)
	}
	return nil
}

func (c Config) normalized() Config {
	c.ModelPath = filepath.Clean(c.ModelPath)
	c.PolicyPath = filepath.Clean(c.PolicyPath)
	if c.ModeFile != "" {
		c.ModeFile = filepath.Clean(c.ModeFile)
	}
	c.DefaultMode = sanitizeMode(c.DefaultMode)
	return c
}

// ConfigFrom reads the AUTHZ_* settings. The mode file wins over AUTHZ_MODE
// once it exists, so an operator can flip an import worker to enforce without
// a restart.
func ConfigFrom(cfg *configuration.Configuration) Config {
	return Config{
		ModelPath:   cfg.Authz.ModelPath,
		PolicyPath:  cfg.Authz.PolicyPath,
		ModeFile:    cfg.Authz.ModeFile,
		DefaultMode: Mode(strings.ToLower(strings.TrimSpace(cfg.Authz.Mode))),
		Logger:      cfg.Logger(),
	}
}
