// Package detections defines the canonical detection record schema shared by
// the topology remapper, the direction inference engine and the store.
//
// A Detection is one logged tag-read event from a fixed radio-telemetry
// reader. Records are produced by an external ingestion step, restructured
// (array/reader/antenna only) by the topology remapper, and consumed
// read-only by the direction engine.
package detections

import "time"

// Detection is the canonical record schema. Field order matches the
// canonical column order expected by downstream summarizers.
//
// Array is nil until a topology has been configured; the effective array of
// an unconfigured record is its reader name (see EffectiveArray). Antenna is
// nil for non-event rows logged by single-antenna readers; such rows carry no
// positional information and are dropped by the direction engine.
type Detection struct {
	Array            *string   `json:"array"`
	Reader           string    `json:"reader"`
	Antenna          *int      `json:"antenna"`
	DetType          string    `json:"det_type"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	DateTime         time.Time `json:"date_time"`
	TimeZone         string    `json:"time_zone"`
	Dur              string    `json:"dur"`
	TagType          string    `json:"tag_type"`
	TagCode          string    `json:"tag_code"`
	ConsecDet        string    `json:"consec_det"`
	NoEmptyScanPrior string    `json:"no_empt_scan_prior"`
}

// EffectiveArray returns the record's array name, falling back to the reader
// name when no topology has been configured yet.
func (d *Detection) EffectiveArray() string {
	if d.Array != nil {
		return *d.Array
	}
	return d.Reader
}

// HasArray reports whether the record carries an explicit array assignment.
func (d *Detection) HasArray() bool {
	return d.Array != nil
}

// Ptr returns a pointer to v. Convenience for the optional Array and Antenna
// fields.
func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a deep copy of dets. The pointer-valued fields are
// re-allocated so mutating the copy never aliases the input; the remapper
// relies on this to keep the caller's collection untouched.
func Clone(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	for i := range dets {
		out[i] = dets[i]
		if dets[i].Array != nil {
			out[i].Array = Ptr(*dets[i].Array)
		}
		if dets[i].Antenna != nil {
			out[i].Antenna = Ptr(*dets[i].Antenna)
		}
	}
	return out
}
