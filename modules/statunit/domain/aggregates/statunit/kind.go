package statunit

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindLegalUnit       Kind = "LegalUnit"
	KindLocalUnit       Kind = "LocalUnit"
	KindEnterpriseUnit  Kind = "EnterpriseUnit"
	KindEnterpriseGroup Kind = "EnterpriseGroup"
)

var Kinds = []Kind{KindLegalUnit, KindLocalUnit, KindEnterpriseUnit, KindEnterpriseGroup}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown stat unit type %q", s)
}

// ParentKind is the kind a unit of kind k links up to, if any.
func (k Kind) ParentKind() (Kind, bool) {
	switch k {
	case KindLocalUnit:
		return KindLegalUnit, true
	case KindLegalUnit:
		return KindEnterpriseUnit, true
	case KindEnterpriseUnit:
		return KindEnterpriseGroup, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusActive        Status = "active"
	StatusInactive      Status = "inactive"
	StatusLiquidated    Status = "liquidated"
	StatusInLiquidation Status = "in_liquidation"
)

func (s Status) IsLiquidated() bool { return s == StatusLiquidated }

// CompatibleWithLiquidation reports whether a child in status s may stay linked
// to a parent that is being liquidated.
func (s Status) CompatibleWithLiquidation() bool {
	return s == "" || s == StatusLiquidated || s == StatusInLiquidation
}

func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, " ", "_")
	switch Status(v) {
	case StatusActive, StatusInactive, StatusLiquidated, StatusInLiquidation:
		return Status(v), nil
	case "inliquidation":
		return StatusInLiquidation, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unknown unit status %q", s)
}

type ChangeReason string

const (
	ChangeReasonCreate  ChangeReason = "create"
	ChangeReasonEdit    ChangeReason = "edit"
	ChangeReasonCorrect ChangeReason = "correct"
)
