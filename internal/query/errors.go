package query

import (
	"errors"
	"fmt"
)

// InvalidParameterError names a query parameter that could not be used.
type InvalidParameterError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

func invalid(param, value, reason string) *InvalidParameterError {
	return &InvalidParameterError{Param: param, Value: value, Reason: reason}
}

// AsInvalidParameter extracts an *InvalidParameterError from err.
func AsInvalidParameter(err error) (*InvalidParameterError, bool) {
	var e *InvalidParameterError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
