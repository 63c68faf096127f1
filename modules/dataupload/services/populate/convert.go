package populate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	time.RFC3339,
	"01/02/2006",
	"2006-01-02 15:04:05",
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as a date", s)
}

func parseInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as an integer", s)
	}
	return &v, nil
}

func parseInt64(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as an integer", s)
	}
	return &v, nil
}

// parseDecimal accepts both "." and "," as the decimal separator.
func parseDecimal(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", "."))
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as a number", s)
	}
	return &d, nil
}

func parseBool(s string) (*bool, error) {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "true", "1", "yes", "y":
		v = true
	case "false", "0", "no", "n":
		v = false
	default:
		return nil, fmt.Errorf("cannot parse %q as a boolean", s)
	}
	return &v, nil
}
