package authz

import (
	"errors"
	"fmt"
)

var ErrForbidden = errors.New("permission denied")

func forbiddenError(req Request) error {
	return fmt.Errorf("%w: %s may not %s %s", ErrForbidden, req.Subject, req.Action, req.Object)
}

func configError(msg string, args ...any) error {
	return fmt.Errorf("authz: "+msg, args...)
}
