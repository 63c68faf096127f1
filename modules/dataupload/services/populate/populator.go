package populate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	"github.com/iota-uz/statreg/modules/statunit/services"
	"github.com/iota-uz/statreg/pkg/authz"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

// Result is a populated unit. Previous is the stored state before population
// and is nil for new units.
type Result struct {
	Unit     statunit.Unit
	IsNew    bool
	Previous statunit.Unit
}

type Options struct {
	PersonsGoodQuality bool
	Permissions        services.Permissions
	Registry           *Registry
}

type Populator struct {
	units       statunit.Repository
	lookups     Lookups
	perms       services.Permissions
	registry    *Registry
	goodQuality bool
}

func NewPopulator(units statunit.Repository, lookups Lookups, opts Options) *Populator {
	p := &Populator{
		units:       units,
		lookups:     lookups,
		perms:       opts.Permissions,
		registry:    opts.Registry,
		goodQuality: opts.PersonsGoodQuality,
	}
	if p.perms == nil {
		p.perms = authz.AllowAll{}
	}
	if p.registry == nil {
		p.registry = NewRegistry()
	}
	return p
}

// Populate loads the unit the record's stat id points at, or starts a new one
// when no unit has that id, and applies the record to it: scalars in mapping
// order, then relations. A record with an empty stat id fails with
// ErrStatIDMappingRequired whatever the allowed operations.
func (p *Populator) Populate(ctx context.Context, rec fileparser.LogicalRecord, job *queuejob.ImportJob, isAdmin bool, asOf time.Time) (Result, error) {
	ds := job.DataSource
	kind := ds.StatUnitType
	statID, ok := scalar(rec, queuejob.StatIDTarget)
	if !ok || statID == "" {
		return Result{}, ErrStatIDMappingRequired
	}

	res := Result{}
	existing, err := p.units.GetByStatID(ctx, kind, statID)
	switch {
	case err == nil:
		res.Unit = existing
	case errors.Is(err, statunit.ErrNotFound):
		if res.Unit, err = statunit.New(kind); err != nil {
			return Result{}, err
		}
		res.IsNew = true
	default:
		return Result{}, err
	}

	if !res.IsNew && ds.AllowedOperations == datasource.OperationCreate {
		return Result{}, ErrStatIDAlreadyExists
	}
	if res.IsNew && ds.AllowedOperations == datasource.OperationAlter {
		return Result{}, ErrStatIDNotFound
	}
	if !res.IsNew {
		res.Previous = res.Unit.Clone()
	}

	seen := map[string]bool{}
	for _, m := range ds.Mapping {
		if seen[m.Target] || isArrayTarget(m.Target) {
			continue
		}
		seen[m.Target] = true
		value, ok := rec.Scalars[m.Target]
		if !ok {
			continue
		}
		if err := p.apply(ctx, res.Unit, m.Target, value, job.UserID, isAdmin); err != nil {
			return Result{}, err
		}
	}

	if err := p.applyRelations(ctx, res.Unit, rec, job.UserID, isAdmin, asOf); err != nil {
		return Result{}, err
	}

	c := res.Unit.Base()
	if c.RegistrationDate.IsZero() {
		c.RegistrationDate = asOf
	}
	if c.Status == "" {
		c.Status = statunit.StatusActive
	}
	return res, nil
}

func (p *Populator) apply(ctx context.Context, u statunit.Unit, target, value, userID string, isAdmin bool) error {
	head, tail, _ := strings.Cut(target, ".")
	statID := u.Base().StatID
	setter, ok := p.registry.Lookup(u.Kind(), head)
	if !ok {
		return &FieldError{Path: target, Value: value, UnitStatID: statID, Err: unknownPropertyError{head: head, kind: u.Kind()}}
	}
	if err := p.checkWrite(ctx, u.Kind(), head, userID, isAdmin); err != nil {
		return &FieldError{Path: target, Value: value, UnitStatID: statID, Err: err}
	}
	if err := setter(ctx, u, tail, value, p.lookups); err != nil {
		return &FieldError{Path: target, Value: value, UnitStatID: u.Base().StatID, Err: err}
	}
	return nil
}

func (p *Populator) applyRelations(ctx context.Context, u statunit.Unit, rec fileparser.LogicalRecord, userID string, isAdmin bool, asOf time.Time) error {
	for _, head := range fileparser.DefaultArrayHeads {
		items := rec.Arrays[head]
		if len(items) == 0 {
			continue
		}
		if err := p.checkWrite(ctx, u.Kind(), head, userID, isAdmin); err != nil {
			return &FieldError{Path: head, UnitStatID: u.Base().StatID, Err: err}
		}
		var err error
		switch head {
		case headActivities:
			var imported []importedActivity
			if imported, err = p.parseActivities(ctx, items, asOf); err == nil {
				mergeActivities(u, imported)
			}
		case headPersons:
			var imported []statunit.PersonLink
			if imported, err = p.parsePersons(ctx, items); err == nil {
				mergePersons(u, imported, p.goodQuality)
			}
		case headCountries:
			err = p.mergeCountries(ctx, u, items)
		}
		var fe *FieldError
		if errors.As(err, &fe) {
			fe.UnitStatID = u.Base().StatID
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Populator) checkWrite(ctx context.Context, kind statunit.Kind, head, userID string, isAdmin bool) error {
	if isAdmin {
		return nil
	}
	allowed, err := p.perms.CanWrite(ctx, userID, isAdmin, authz.UnitObject(string(kind), head))
	if err != nil {
		return err
	}
	if !allowed {
		return authz.ErrForbidden
	}
	return nil
}

func scalar(rec fileparser.LogicalRecord, target string) (string, bool) {
	if v, ok := rec.Scalars[target]; ok {
		return strings.TrimSpace(v), true
	}
	for k, v := range rec.Scalars {
		if strings.EqualFold(k, target) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func isArrayTarget(target string) bool {
	head, _, _ := strings.Cut(target, ".")
	for _, h := range fileparser.DefaultArrayHeads {
		if h == head {
			return true
		}
	}
	return false
}
