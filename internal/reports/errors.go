package reports

import (
	"errors"
	"fmt"
)

// ErrInvalidSpec marks report specifications that fail validation before any
// query is issued: unknown fields, bad operators, malformed date ranges.
var ErrInvalidSpec = errors.New("invalid report spec")

func invalidSpec(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, fmt.Sprintf(format, args...))
}
