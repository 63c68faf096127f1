package authz

import (
	"strings"
)

const (
	ActionWrite = "write"

	userPrefix = "user:"
	rolePrefix = "role:"
	objectRoot = "statunit"
)

// Request is one casbin evaluation.
type Request struct {
	Subject string
	Object  string
	Action  string
}

func NewRequest(subject, object, action string) Request {
	return Request{Subject: subject, Object: object, Action: NormalizeAction(action)}
}

// SubjectForUser returns "user:<id>", or "user:anonymous" for an empty id.
func SubjectForUser(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}
	return userPrefix + userID
}

func SubjectForRole(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		slug = "unnamed"
	}
	if strings.HasPrefix(slug, rolePrefix) {
		return slug
	}
	return rolePrefix + slug
}

// UnitObject names a unit type, or one of its fields when field is given:
// UnitObject("LegalUnit", "Activities") is "statunit.legalunit.activities".
func UnitObject(kind string, field ...string) string {
	parts := []string{objectRoot, strings.ToLower(strings.TrimSpace(kind))}
	for _, f := range field {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ".")
}

func NormalizeAction(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return "*"
	}
	return action
}
