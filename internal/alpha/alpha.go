// Package alpha persists and checks the alpha-access gate: a marker file
// that must exist and declare enabled=true before the reactor is allowed
// to run at all. This is a hard startup gate, not a kernel mode — an
// absent or disabled marker stops the driver before the tick loop starts.
package alpha

import (
	"encoding/json"
	"fmt"
	"os"
)

// Constraints narrows what an alpha grant is allowed to do; fields are all
// optional and absence means unconstrained.
type Constraints struct {
	MaxSessionMinutes *int `json:"max_session_minutes,omitempty"`
}

// Telemetry records what the grant authorizes collecting, beyond the
// ambient structured logs every build emits.
type Telemetry struct {
	ExtendedMetrics bool `json:"extended_metrics,omitempty"`
}

// Marker is the on-disk alpha-access grant.
type Marker struct {
	Enabled     bool         `json:"enabled"`
	CohortID    string       `json:"cohort_id,omitempty"`
	IssuedAt    uint64       `json:"issued_at"`
	Telemetry   *Telemetry   `json:"telemetry,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
}

// ErrNotGranted is returned by Check when the marker is missing or
// declares enabled=false.
var ErrNotGranted = fmt.Errorf("alpha: access not granted")

// Load reads the marker at path. A missing file decodes as a disabled,
// zero-value Marker rather than an error — callers use Check to turn that
// into a hard failure.
func Load(path string) (Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Marker{}, nil
		}
		return Marker{}, fmt.Errorf("alpha: read marker %q: %w", path, err)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, fmt.Errorf("alpha: decode marker %q: %w", path, err)
	}
	return m, nil
}

// Check loads the marker at path and returns ErrNotGranted if it is
// missing or disabled. It is the one call sites outside this package
// should use to decide whether the reactor may start.
func Check(path string) (Marker, error) {
	m, err := Load(path)
	if err != nil {
		return Marker{}, err
	}
	if !m.Enabled {
		return m, ErrNotGranted
	}
	return m, nil
}
