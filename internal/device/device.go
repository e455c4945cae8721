package device

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind identifies a compute backend.
type Kind string

const (
	CPU   Kind = "cpu"
	CUDA  Kind = "cuda"
	Metal Kind = "metal"
)

// ErrUnavailable is returned when the requested backend is not present
// in this build. Callers are expected to fail fast on it; there is no
// fallback to a slower execution path.
var ErrUnavailable = errors.New("device unavailable")

// Info describes the backend the process will run on.
type Info struct {
	Kind  Kind
	Cores int
}

// Probe reports the backends usable in this build. Only the parallel CPU
// backend is compiled in; CUDA and Metal need cgo builds this module does
// not ship.
func Probe() []Info {
	return []Info{
		{Kind: CPU, Cores: runtime.NumCPU()},
	}
}

// Ensure verifies the requested backend is available. It must run before
// any dataset, tokenizer, or model work so a missing device halts the
// process before anything else starts.
func Ensure(kind Kind) (Info, error) {
	for _, info := range Probe() {
		if info.Kind == kind {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("backend %q: %w", kind, ErrUnavailable)
}
