package authz

import "errors"

func isForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
