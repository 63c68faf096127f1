package authz

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeShadow   Mode = "shadow"
	ModeEnforce  Mode = "enforce"
)

type ModeSource interface {
	Mode() Mode
}

type StaticMode Mode

func (s StaticMode) Mode() Mode { return sanitizeMode(Mode(s)) }

// FileModeSource reads the mode from a YAML file ("mode: enforce") and
// re-reads it only when the file's modification time changes.
type FileModeSource struct {
	path     string
	fallback Mode

	mu      sync.Mutex
	mode    Mode
	modTime time.Time
}

func NewFileModeSource(path string, fallback Mode) *FileModeSource {
	return &FileModeSource{path: path, fallback: sanitizeMode(fallback)}
}

func (p *FileModeSource) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	if err != nil {
		if p.mode == "" {
			return p.fallback
		}
		return p.mode
	}
	if p.mode != "" && info.ModTime().Equal(p.modTime) {
		return p.mode
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return p.fallback
	}
	var cfg struct {
		Mode string `yaml:"mode"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil || strings.TrimSpace(cfg.Mode) == "" {
		p.mode = p.fallback
	} else {
		p.mode = sanitizeMode(Mode(cfg.Mode))
	}
	p.modTime = info.ModTime()
	return p.mode
}

func knownMode(mode Mode) bool {
	switch Mode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case ModeDisabled, ModeShadow, ModeEnforce:
		return true
	}
	return false
}

func sanitizeMode(mode Mode) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case ModeDisabled:
		return ModeDisabled
	case ModeEnforce:
		return ModeEnforce
	default:
		return ModeShadow
	}
}
