package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLabels is returned when classifying with a model without labels.
	ErrNoLabels = errors.New("classifier: model has no labels")
	// ErrNoInstances is returned when training without any usable instance.
	ErrNoInstances = errors.New("classifier: no training instances")
)

// ModelError reports a model whose structure is inconsistent.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ModelError struct {
	Reason string
	cause  error
}

func (e *ModelError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("classifier: invalid model: %s: %v", e.Reason, e.cause)
	}
	return "classifier: invalid model: " + e.Reason
}

func (e *ModelError) Unwrap() error { return e.cause }

// AlgorithmError reports an unknown training algorithm name.
type AlgorithmError struct {
	Name string
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("classifier: unknown algorithm %q", e.Name)
}
