package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoTraining is returned when Kappa is requested before a training was loaded
var ErrNoTraining = errors.New("no training loaded for within-training analysis")

// ErrEmptyKappaResult is returned when the source answers without a result
var ErrEmptyKappaResult = errors.New("statistics source returned no kappa result")

// PreconditionError reports a request that cannot run, e.g. a cross-training
// comparison with fewer than two trainings. Nothing is computed.
type PreconditionError struct {
	Requested int
	Required  int
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("at least %d trainings are required for a comparison, got %d", e.Required, e.Requested)
}

// FetchError wraps a failed call to the statistics source. The session has
// already degraded to an empty or last-good state when it is returned.
type FetchError struct {
	Operation string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Notice is a transient, user-visible message
type Notice struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func newErrorNotice(message string) Notice {
	return Notice{
		ID:        uuid.NewString(),
		Level:     "error",
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
