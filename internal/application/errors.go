package application

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrDependencyUnavailable is returned when the serialization codec needed
// by a vault mutation has not been provided.
var ErrDependencyUnavailable = errors.New("serialization codec not available")

// ErrGenerationInFlight is returned by Generate while another run is active.
var ErrGenerationInFlight = errors.New("generation already in progress")

// ErrNothingToGenerate is returned when there are no scenes and no prompt.
var ErrNothingToGenerate = errors.New("enter a prompt or load a CSV file first")

// ErrSceneNotFound is returned when a scene id is not in the list.
var ErrSceneNotFound = errors.New("scene not found")

// ErrNoExportToken is returned by Export when no GitHub token is stored.
var ErrNoExportToken = errors.New("enter a GitHub token to save results")

// ErrNothingToExport is returned by Export when no result carries media.
var ErrNothingToExport = errors.New("no results yet, generate some images first")

// ValidationError is a user-correctable rejection. The vault is left
// unchanged when one is returned.
type ValidationError struct {
	Message    string
	Duplicates []string
}

func (e *ValidationError) Error() string {
	if len(e.Duplicates) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Duplicates, ", "))
	}
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TimeoutError is returned when a video job does not finish within the poll
// attempt ceiling.
type TimeoutError struct {
	JobID  string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("video generation timed out after %s (id: %s)", e.Waited, e.JobID)
}
