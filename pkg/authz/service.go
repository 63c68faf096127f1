package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

// Service answers write-permission questions for stat unit types and fields.
type Service struct {
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
	modes    ModeSource
	mu       sync.RWMutex
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	logger := logrus.WithField("component", "authz")
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	}

	enf, err := casbin.NewEnforcer(cfg.ModelPath, fileadapter.NewAdapter(cfg.PolicyPath))
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	if err := enf.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("authz: failed to load policies: %w", err)
	}

	modes := cfg.Modes
	if modes == nil {
		modes = NewFileModeSource(cfg.ModeFile, cfg.DefaultMode)
	}
	return &Service{enforcer: enf, logger: logger, modes: modes}, nil
}

func (s *Service) Mode() Mode {
	return sanitizeMode(s.modes.Mode())
}

// CanWrite reports whether userID may write object. Admins always may. In
// shadow mode a deny is logged and reported as allowed.
func (s *Service) CanWrite(ctx context.Context, userID string, isAdmin bool, object string) (bool, error) {
	if isAdmin {
		return true, nil
	}
	err := s.Authorize(ctx, NewRequest(SubjectForUser(userID), object, ActionWrite))
	if err == nil {
		return true, nil
	}
	if isForbidden(err) {
		return false, nil
	}
	return false, err
}

// Authorize returns an ErrForbidden error when the request is denied under
// enforce mode.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	mode := s.Mode()
	if mode == ModeDisabled {
		return nil
	}
	allowed, err := s.Check(ctx, req)
	if err != nil {
		return err
	}
	recordDecision(mode, allowed)
	if allowed {
		return nil
	}

	entry := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"subject": req.Subject,
		"object":  req.Object,
		"action":  req.Action,
		"mode":    mode,
	})
	if mode == ModeShadow {
		entry.Warn("authz shadow deny")
		return nil
	}
	entry.Warn("authz denied request")
	return forbiddenError(req)
}

func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(req.Subject, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

func (s *Service) ReloadPolicy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	s.logger.WithContext(ctx).Info("authz policy reloaded")
	return nil
}

// AllowAll grants every request; used when no policy files are configured.
type AllowAll struct{}

func (AllowAll) CanWrite(context.Context, string, bool, string) (bool, error) { return true, nil }
