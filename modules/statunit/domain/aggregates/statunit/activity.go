package statunit

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ActivityType string

const (
	ActivityPrimary   ActivityType = "primary"
	ActivitySecondary ActivityType = "secondary"
	ActivityAncillary ActivityType = "ancillary"
)

func ParseActivityType(s string) (ActivityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "1":
		return ActivityPrimary, nil
	case "secondary", "2":
		return ActivitySecondary, nil
	case "ancillary", "3":
		return ActivityAncillary, nil
	}
	return "", fmt.Errorf("unknown activity type %q", s)
}

type Activity struct {
	ID          int64            `json:"id,omitempty"`
	Year        *int             `json:"activity_year,omitempty"`
	Type        ActivityType     `json:"activity_type"`
	Employees   *int             `json:"employees,omitempty"`
	Turnover    *decimal.Decimal `json:"turnover,omitempty"`
	Category    CodeRef          `json:"activity_category"`
	UpdatedBy   string           `json:"updated_by,omitempty"`
	UpdatedDate *time.Time       `json:"updated_date,omitempty"`
}

func (a Activity) YearValue() int {
	if a.Year == nil {
		return 0
	}
	return *a.Year
}

// Key is the natural key of an activity: year plus category code.
func (a Activity) Key() string {
	return fmt.Sprintf("%d|%s", a.YearValue(), a.Category.Code)
}
