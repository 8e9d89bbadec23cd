package catalog

import (
	"errors"
	"fmt"
)

// ErrUnsupportedModel is returned when a model has no route for the requested kind.
var ErrUnsupportedModel = errors.New("unsupported model")

// InvalidParametersError rejects a model/parameter combination before any
// credits are reserved.
type InvalidParametersError struct {
	Field  string
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s %s", e.Field, e.Reason)
}
