package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/history"
	"github.com/iota-uz/statreg/pkg/authz"
)

var tracer = otel.Tracer("github.com/iota-uz/statreg/modules/statunit/services")

// SaveRequest is one populated unit on its way to the register.
type SaveRequest struct {
	Unit      statunit.Unit
	Previous  statunit.Unit
	IsNew     bool
	Priority  datasource.Priority
	Operation datasource.AllowedOperation
	UserID    string
	IsAdmin   bool
}

type CoordinatorOptions struct {
	Permissions Permissions
	RunTx       TxRunner
	Logger      *logrus.Entry
}

// Coordinator creates or edits a unit together with the related units the
// register requires, one transaction per call.
type Coordinator struct {
	units  statunit.Repository
	edits  *EditService
	perms  Permissions
	runTx  TxRunner
	logger *logrus.Entry
}

func NewCoordinator(units statunit.Repository, hist history.Repository, opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		units:  units,
		edits:  NewEditService(units, hist),
		perms:  opts.Permissions,
		runTx:  opts.RunTx,
		logger: opts.Logger,
	}
	if c.perms == nil {
		c.perms = authz.AllowAll{}
	}
	if c.runTx == nil {
		c.runTx = DefaultTxRunner
	}
	if c.logger == nil {
		c.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// SaveUnit reports whether anything was written. Units the source may not
// save and edits that change nothing return false with a nil error. Every
// written unit is queued on buf for re-indexing.
func (c *Coordinator) SaveUnit(ctx context.Context, req SaveRequest, buf *WriteBuffer) (bool, error) {
	ctx, span := tracer.Start(ctx, "statunit.save_unit")
	defer span.End()
	span.SetAttributes(
		attribute.String("statunit.kind", string(req.Unit.Kind())),
		attribute.String("statunit.stat_id", req.Unit.Base().StatID),
		attribute.Bool("statunit.new", req.IsNew),
	)

	if !req.Priority.Permits(req.IsNew) {
		return false, nil
	}
	if !req.IsNew && !req.Operation.AllowsAlter() {
		return false, nil
	}

	allowed, err := c.perms.CanWrite(ctx, req.UserID, req.IsAdmin, authz.UnitObject(string(req.Unit.Kind())))
	if err != nil {
		return false, c.fail(span, err)
	}
	if !allowed {
		return false, c.fail(span, authz.ErrForbidden)
	}

	var saved []statunit.Unit
	err = c.runTx(ctx, func(ctx context.Context) error {
		var err error
		if req.IsNew {
			saved, err = c.create(ctx, req.Unit)
		} else {
			saved, err = c.edits.Edit(ctx, req.Unit, req.Previous)
		}
		return err
	})
	if err != nil {
		return false, c.fail(span, err)
	}
	if len(saved) == 0 {
		return false, nil
	}

	if buf != nil {
		if err := buf.Add(ctx, saved...); err != nil {
			c.logger.WithError(err).WithField("stat_id", req.Unit.Base().StatID).Warn("failed to queue search index refresh")
		}
	}
	return true, nil
}

func (c *Coordinator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return saveError(err)
}

func (c *Coordinator) create(ctx context.Context, u statunit.Unit) ([]statunit.Unit, error) {
	switch v := u.(type) {
	case *statunit.LegalUnit:
		return c.createLegal(ctx, v)
	case *statunit.EnterpriseUnit:
		return c.createEnterprise(ctx, v)
	default:
		if err := c.units.Create(ctx, u); err != nil {
			return nil, err
		}
		return []statunit.Unit{u}, nil
	}
}

// createLegal links the legal unit to the enterprise sharing its stat id,
// creating an enterprise and group when there is none, and adds a local unit
// at the legal address.
func (c *Coordinator) createLegal(ctx context.Context, legal *statunit.LegalUnit) ([]statunit.Unit, error) {
	var (
		saved      []statunit.Unit
		enterprise *statunit.EnterpriseUnit
	)
	if id := legal.EnterpriseUnitRegID; id == nil || *id == 0 {
		existing, err := c.units.GetByStatID(ctx, statunit.KindEnterpriseUnit, legal.StatID)
		switch {
		case err == nil:
			enterprise = existing.(*statunit.EnterpriseUnit)
		case errors.Is(err, statunit.ErrNotFound):
			enterprise = enterpriseFrom(legal)
			group, err := c.createGroupFor(ctx, enterprise)
			if err != nil {
				return nil, err
			}
			if err := c.units.Create(ctx, enterprise); err != nil {
				return nil, err
			}
			group.EnterpriseUnitRegIDs = append(group.EnterpriseUnitRegIDs, enterprise.RegID)
			if err := c.units.Update(ctx, group); err != nil {
				return nil, err
			}
			saved = append(saved, group)
		default:
			return nil, err
		}
		legal.EnterpriseUnitRegID = ptr(enterprise.RegID)
	}

	if err := c.units.Create(ctx, legal); err != nil {
		return nil, err
	}
	saved = append(saved, legal)

	if enterprise != nil {
		enterprise.LegalUnitRegIDs = append(enterprise.LegalUnitRegIDs, legal.RegID)
		if err := c.units.Update(ctx, enterprise); err != nil {
			return nil, err
		}
		saved = append(saved, enterprise)
	}

	hasLocal, err := c.hasLocalAtAddress(ctx, legal)
	if err != nil {
		return nil, err
	}
	if !hasLocal {
		local := localFrom(legal)
		if err := c.units.Create(ctx, local); err != nil {
			return nil, err
		}
		saved = append(saved, local)
	}
	return saved, nil
}

// createEnterprise adds a group when the enterprise has none and re-links the
// legal units sharing its stat id.
func (c *Coordinator) createEnterprise(ctx context.Context, enterprise *statunit.EnterpriseUnit) ([]statunit.Unit, error) {
	if id := enterprise.EntGroupID; id != nil && *id > 0 {
		if err := c.units.Create(ctx, enterprise); err != nil {
			return nil, err
		}
		return []statunit.Unit{enterprise}, nil
	}

	group, err := c.createGroupFor(ctx, enterprise)
	if err != nil {
		return nil, err
	}
	legals, err := c.units.ListByStatID(ctx, statunit.KindLegalUnit, enterprise.StatID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(legals))
	enterprise.LegalUnitRegIDs = nil
	for _, l := range legals {
		enterprise.LegalUnitRegIDs = append(enterprise.LegalUnitRegIDs, l.Base().RegID)
		ids = append(ids, strconv.FormatInt(l.Base().RegID, 10))
	}
	enterprise.HistoryLegalUnitIDs = strings.Join(ids, ",")
	if err := c.units.Create(ctx, enterprise); err != nil {
		return nil, err
	}

	group.EnterpriseUnitRegIDs = append(group.EnterpriseUnitRegIDs, enterprise.RegID)
	if err := c.units.Update(ctx, group); err != nil {
		return nil, err
	}
	saved := []statunit.Unit{group, enterprise}
	for _, l := range legals {
		l.SetParentRegID(ptr(enterprise.RegID))
		if err := c.units.Update(ctx, l); err != nil {
			return nil, err
		}
		saved = append(saved, l)
	}
	return saved, nil
}

func (c *Coordinator) createGroupFor(ctx context.Context, enterprise *statunit.EnterpriseUnit) (*statunit.EnterpriseGroup, error) {
	group := &statunit.EnterpriseGroup{Common: copyCommon(&enterprise.Common)}
	if err := c.units.Create(ctx, group); err != nil {
		return nil, err
	}
	enterprise.EntGroupID = ptr(group.RegID)
	return group, nil
}

func (c *Coordinator) hasLocalAtAddress(ctx context.Context, legal *statunit.LegalUnit) (bool, error) {
	locals, err := c.units.ListChildren(ctx, statunit.KindLocalUnit, legal.RegID)
	if err != nil {
		return false, err
	}
	key := ""
	if addr := statunit.FirstAddress(legal); addr != nil {
		key = addr.Key()
	}
	for _, l := range locals {
		if addr := statunit.FirstAddress(l); addr != nil && addr.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func enterpriseFrom(legal *statunit.LegalUnit) *statunit.EnterpriseUnit {
	e := &statunit.EnterpriseUnit{Common: copyCommon(&legal.Common)}
	if legal.TotalCapital != nil {
		v := *legal.TotalCapital
		e.TotalCapital = &v
	}
	if legal.Market != nil {
		e.Commercial = *legal.Market
	}
	return e
}

func localFrom(legal *statunit.LegalUnit) *statunit.LocalUnit {
	l := &statunit.LocalUnit{Common: copyCommon(&legal.Common)}
	l.LegalUnitRegID = ptr(legal.RegID)
	return l
}

// copyCommon deep copies the shared fields of c for a new related unit.
func copyCommon(c *statunit.Common) statunit.Common {
	src := &statunit.LocalUnit{Common: *c}
	dup := src.Clone().Base()
	dup.RegID = 0
	return *dup
}

func ptr[T any](v T) *T { return &v }
