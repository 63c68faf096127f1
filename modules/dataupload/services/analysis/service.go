package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/pkg/logging"
)

const defaultCandidateLimit = 50

type ServiceOptions struct {
	Rules          Rules
	CandidateLimit int
	Logger         *logrus.Entry
}

func (o *ServiceOptions) setDefaults() {
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = defaultCandidateLimit
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// Service gathers what the rule groups need from the register and runs them.
type Service struct {
	units  statunit.Repository
	opts   ServiceOptions
	logger *logrus.Entry
}

func NewService(units statunit.Repository, opts ServiceOptions) *Service {
	opts.setDefaults()
	return &Service{
		units:  units,
		opts:   opts,
		logger: opts.Logger.WithField("component", "analysis"),
	}
}

func (s *Service) Rules() Rules { return s.opts.Rules }

// Analyze runs every enabled rule group against u. Repository failures are
// returned as errors; rule violations end up in the Result.
func (s *Service) Analyze(ctx context.Context, u statunit.Unit, onlyIdentifiers bool) (Result, error) {
	a := Analyzer{Rules: s.opts.Rules, OnlyIdentifiers: onlyIdentifiers}
	c := u.Base()

	hasParent, err := s.hasRelatedParent(ctx, u)
	if err != nil {
		return Result{}, err
	}

	var addresses []statunit.Address
	if a.Rules.Connections.CheckAddress {
		if addr := statunit.FirstAddress(u); addr != nil {
			addresses, err = s.units.AddressesInUse(ctx, addr.Key(), c.RegID)
			if err != nil {
				return Result{}, fmt.Errorf("addresses in use: %w", err)
			}
		}
	}

	var population []statunit.Unit
	if a.Rules.Duplicates.Enabled() {
		population, err = s.units.FindDuplicateCandidates(ctx, s.duplicateFilter(u))
		if err != nil {
			return Result{}, fmt.Errorf("duplicate candidates: %w", err)
		}
	}

	res := a.CheckAll(u, hasParent, len(c.Activities) > 0, addresses, population)

	orphans, err := s.checkOrphans(ctx, u)
	if err != nil {
		return Result{}, err
	}
	res.append(SummaryOrphans, orphans)

	if res.HasMessages() {
		s.logger.WithFields(logrus.Fields{
			"stat_id": c.StatID,
			"kind":    u.Kind(),
			"fields":  res.Messages.Keys(),
		}).Debug("analysis produced warnings")
	}
	return res, nil
}

func (s *Service) duplicateFilter(u statunit.Unit) statunit.DuplicateFilter {
	rules := s.opts.Rules.Duplicates
	c := u.Base()
	f := statunit.DuplicateFilter{Kind: u.Kind(), ExcludeRegID: c.RegID, Limit: s.opts.CandidateLimit}
	if rules.CheckName {
		f.Name = c.Name
	}
	if rules.CheckStatIDTaxRegID {
		f.StatID, f.TaxRegID = c.StatID, c.TaxRegID
	}
	if rules.CheckExternalID {
		f.ExternalID = c.ExternalID
	}
	if rules.CheckShortName {
		f.ShortName = c.ShortName
	}
	if rules.CheckTelephoneNo {
		f.TelephoneNo = c.TelephoneNo
	}
	if rules.CheckEmailAddress {
		f.EmailAddress = c.EmailAddress
	}
	if addr := statunit.FirstAddress(u); rules.CheckAddress && addr != nil {
		f.AddressKey = addr.Key()
	}
	return f
}

func (s *Service) hasRelatedParent(ctx context.Context, u statunit.Unit) (bool, error) {
	if !s.opts.Rules.Connections.CheckRelatedLegalUnit {
		return true, nil
	}
	switch v := u.(type) {
	case *statunit.EnterpriseUnit:
		if len(v.LegalUnitRegIDs) > 0 {
			return true, nil
		}
		return s.hasChildren(ctx, statunit.KindLegalUnit, v.RegID)
	case *statunit.EnterpriseGroup:
		return true, nil
	default:
		return u.ParentRegID() != nil, nil
	}
}

func (s *Service) hasChildren(ctx context.Context, kind statunit.Kind, regID int64) (bool, error) {
	if regID == 0 {
		return false, nil
	}
	n, err := s.units.CountChildren(ctx, kind, regID)
	if err != nil {
		return false, fmt.Errorf("count %s children: %w", kind, err)
	}
	return n > 0, nil
}

// parentActive reports whether the unit's parent exists and is active. A
// missing parent row counts as inactive.
func (s *Service) parentActive(ctx context.Context, u statunit.Unit) (bool, error) {
	parentKind, ok := u.Kind().ParentKind()
	if !ok || u.ParentRegID() == nil {
		return false, nil
	}
	parent, err := s.units.GetByRegID(ctx, parentKind, *u.ParentRegID())
	if errors.Is(err, statunit.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load parent %s: %w", parentKind, err)
	}
	return parent.Base().Status == statunit.StatusActive, nil
}

// checkOrphans flags active units that are missing the links the register
// expects between the four unit kinds.
func (s *Service) checkOrphans(ctx context.Context, u statunit.Unit) (Messages, error) {
	rules := s.opts.Rules.Orphan
	m := Messages{}
	if !rules.Enabled() || u.Base().Status != statunit.StatusActive {
		return m, nil
	}
	regID := u.Base().RegID

	switch v := u.(type) {
	case *statunit.EnterpriseUnit:
		if rules.CheckEnterpriseRelatedLegalUnits && len(v.LegalUnitRegIDs) == 0 {
			has, err := s.hasChildren(ctx, statunit.KindLegalUnit, regID)
			if err != nil {
				return nil, err
			}
			if !has {
				m.add("LegalUnits", "Enterprise unit doesn't have related legal units")
			}
		}
	case *statunit.EnterpriseGroup:
		if rules.CheckEnterpriseGroupRelatedEnterprises && len(v.EnterpriseUnitRegIDs) == 0 {
			has, err := s.hasChildren(ctx, statunit.KindEnterpriseUnit, regID)
			if err != nil {
				return nil, err
			}
			if !has {
				m.add("EnterpriseUnits", "Enterprise group doesn't have related enterprise units")
			}
		}
	case *statunit.LegalUnit:
		if rules.CheckOrphanLegalUnits {
			if err := s.checkParent(ctx, u, m, "EnterpriseUnitRegId",
				"Legal unit doesn't have parent enterprise unit",
				"Legal unit's parent enterprise unit is not active"); err != nil {
				return nil, err
			}
		}
		if rules.CheckLegalUnitRelatedLocalUnits {
			has, err := s.hasChildren(ctx, statunit.KindLocalUnit, regID)
			if err != nil {
				return nil, err
			}
			if !has {
				m.add("LocalUnits", "Legal unit doesn't have related local units")
			}
		}
	case *statunit.LocalUnit:
		if rules.CheckOrphanLocalUnits {
			if err := s.checkParent(ctx, u, m, "LegalUnitId",
				"Local unit doesn't have parent legal unit",
				"Local unit's parent legal unit is not active"); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (s *Service) checkParent(ctx context.Context, u statunit.Unit, m Messages, key, missing, inactive string) error {
	if u.ParentRegID() == nil {
		m.add(key, missing)
		return nil
	}
	active, err := s.parentActive(ctx, u)
	if err != nil {
		return err
	}
	if !active {
		m.add(key, inactive)
	}
	return nil
}
