package question

import (
	"errors"
	"fmt"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
)

var (
	// ErrInvalidParameter marks a request whose parameters failed validation.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnknownQuestion marks a lookup of an id that is not registered.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrSchema marks a dataset missing a required column family.
	ErrSchema = dataset.ErrSchema
)

// ParamError describes one rejected parameter.
type ParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *ParamError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

// SchemaError is the dataset-level error for an unresolvable column family.
type SchemaError = dataset.SchemaError

func invalid(param, value, reason string) error {
	return &ParamError{Param: param, Value: value, Reason: reason}
}

func unknown(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
}
