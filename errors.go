package arrhenius

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/dataset"
)

// ErrDatasetMissing is returned when an image or archive operation is
// invoked for a dataset that is not on disk. The coordinator never
// launches a simulation from those paths; callers must ensure the
// dataset first.
var ErrDatasetMissing = errors.New("arrhenius: dataset not present")

// Fault classifies a failure for the transport boundary.
type Fault int

const (
	// FaultUnknown is the catch-all for unexpected failures. No
	// diagnostic detail should reach the caller; log it instead.
	FaultUnknown Fault = iota

	// FaultClient marks invalid input: malformed configuration,
	// unknown variables, out-of-range time segments.
	FaultClient

	// FaultCapacity marks storage exhaustion while writing artifacts.
	// Callers should advise reduced concurrent load.
	FaultCapacity

	// FaultIO marks other disk failures: bad paths, permissions.
	FaultIO
)

func (f Fault) String() string {
	switch f {
	case FaultClient:
		return "client"
	case FaultCapacity:
		return "capacity"
	case FaultIO:
		return "io"
	default:
		return "unknown"
	}
}

// Classify maps an error from an ensure operation onto a Fault.
func Classify(err error) Fault {
	var verr *config.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, dataset.ErrUnknownVariable),
		errors.Is(err, dataset.ErrSegmentRange):
		return FaultClient
	case errors.Is(err, syscall.ENOSPC):
		return FaultCapacity
	}

	var perr *fs.PathError
	if errors.As(err, &perr) || errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrNotExist) || errors.Is(err, dataset.ErrCorrupt) {
		return FaultIO
	}
	return FaultUnknown
}
