package services

import (
	"context"
	"errors"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/history"
)

// Paths rewritten on every import; a difference there alone is not a change.
var bookkeepingPaths = []string{
	"/user_id",
	"/change_reason",
	"/edit_comment",
	"/start_period",
	"/end_period",
	"/data_source",
}

type change struct {
	before statunit.Unit
	after  statunit.Unit
}

type EditService struct {
	units   statunit.Repository
	history history.Repository
	now     func() time.Time
}

func NewEditService(units statunit.Repository, history history.Repository) *EditService {
	return &EditService{units: units, history: history, now: time.Now}
}

// Edit stores unit over previous and returns every unit it wrote, cascaded
// liquidations included. An empty result means nothing changed. It must run
// inside a transaction.
func (s *EditService) Edit(ctx context.Context, unit, previous statunit.Unit) ([]statunit.Unit, error) {
	if previous == nil {
		return nil, ErrPreviousMissing
	}
	now := s.now()
	cur, prev := unit.Base(), previous.Base()

	if prev.Status.IsLiquidated() && cur.Status != prev.Status {
		return nil, ErrUnitHasLiquidated
	}
	if cur.LiqDate != nil || cur.LiqReason != "" || cur.Status.IsLiquidated() {
		cur.Status = statunit.StatusLiquidated
		if cur.LiqDate == nil {
			cur.LiqDate = &now
		}
	}
	if cur.LiqDate == nil {
		cur.LiqDate = prev.LiqDate
	}
	if cur.LiqReason == "" {
		cur.LiqReason = prev.LiqReason
	}

	var cascaded []change
	if cur.Status.IsLiquidated() && !prev.Status.IsLiquidated() {
		var err error
		if cascaded, err = s.liquidate(ctx, unit); err != nil {
			return nil, err
		}
	}

	changed, err := Changed(previous, unit)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, nil
	}

	cur.StartPeriod = now
	saved := []statunit.Unit{unit}
	if err := s.track(ctx, change{before: previous, after: unit}, now); err != nil {
		return nil, err
	}
	for _, ch := range cascaded {
		c := ch.after.Base()
		c.UserID, c.ChangeReason, c.EditComment, c.StartPeriod = cur.UserID, cur.ChangeReason, cur.EditComment, now
		if err := s.track(ctx, ch, now); err != nil {
			return nil, err
		}
		saved = append(saved, ch.after)
	}
	return saved, nil
}

// liquidate checks the children of a unit entering liquidation and returns the
// related units that follow it.
func (s *EditService) liquidate(ctx context.Context, unit statunit.Unit) ([]change, error) {
	switch unit.Kind() {
	case statunit.KindEnterpriseUnit:
		return nil, ErrLiquidateEnterprise
	case statunit.KindLegalUnit:
	default:
		return nil, nil
	}

	cur := unit.Base()
	locals, err := s.units.ListChildren(ctx, statunit.KindLocalUnit, cur.RegID)
	if err != nil {
		return nil, err
	}
	for _, l := range locals {
		if !l.Base().Status.CompatibleWithLiquidation() {
			return nil, ErrLocalUnitsNotLiquidated
		}
	}

	var out []change
	for _, l := range locals {
		if l.Base().Status.IsLiquidated() {
			continue
		}
		out = append(out, liquidated(l, cur))
	}

	entID := unit.ParentRegID()
	if entID == nil || *entID == 0 {
		return out, nil
	}
	legals, err := s.units.ListChildren(ctx, statunit.KindLegalUnit, *entID)
	if err != nil {
		return nil, err
	}
	for _, l := range legals {
		if l.Base().RegID != cur.RegID && !l.Base().Status.IsLiquidated() {
			return out, nil
		}
	}
	ent, err := s.units.GetByRegID(ctx, statunit.KindEnterpriseUnit, *entID)
	if errors.Is(err, statunit.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if !ent.Base().Status.IsLiquidated() {
		out = append(out, liquidated(ent, cur))
	}
	return out, nil
}

func liquidated(u statunit.Unit, from *statunit.Common) change {
	before := u.Clone()
	c := u.Base()
	c.Status = statunit.StatusLiquidated
	c.LiqDate = from.LiqDate
	c.LiqReason = from.LiqReason
	return change{before: before, after: u}
}

func (s *EditService) track(ctx context.Context, ch change, now time.Time) error {
	before, err := statunit.Marshal(ch.before)
	if err != nil {
		return err
	}
	after, err := statunit.Marshal(ch.after)
	if err != nil {
		return err
	}
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return err
	}
	b, a := ch.before.Base(), ch.after.Base()
	rec := &history.Record{
		RegID:        a.RegID,
		Kind:         ch.after.Kind(),
		Snapshot:     before,
		Changes:      patch,
		ChangeReason: a.ChangeReason,
		EditComment:  a.EditComment,
		UserID:       a.UserID,
		StartPeriod:  b.StartPeriod,
		EndPeriod:    now,
	}
	if err := s.history.Create(ctx, rec); err != nil {
		return err
	}
	return s.units.Update(ctx, ch.after)
}

// Changed compares two versions of a unit, ignoring bookkeeping fields and the
// order of relation collections.
func Changed(previous, unit statunit.Unit) (bool, error) {
	a, b := previous.Clone(), unit.Clone()
	statunit.SortRelations(a)
	statunit.SortRelations(b)
	patch, err := jsondiff.Compare(a, b, jsondiff.Ignores(bookkeepingPaths...))
	if err != nil {
		return false, err
	}
	return len(patch) > 0, nil
}
