package topology

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/riverbend-data/passage.report/internal/detections"
)

// Triple is one distinct (array, reader, antenna) combination present in a
// remapped collection.
type Triple struct {
	Array   string `json:"array"`
	Reader  string `json:"reader"`
	Antenna *int   `json:"antenna"`
}

// Report summarizes the topology resulting from one Configure call: every
// distinct (array, reader, antenna) triple, sorted. It is emitted for
// operator review after each invocation and carries no functional guarantees.
type Report struct {
	RunID   uuid.UUID `json:"run_id"`
	Mode    Mode      `json:"mode"`
	Triples []Triple  `json:"triples"`
}

// NewReport builds the distinct-triple summary for a remapped collection.
func NewReport(mode Mode, dets []detections.Detection) *Report {
	// antenna folded into a comparable key; -1 stands in for null
	type key struct {
		array, reader string
		antenna       int
	}
	seen := make(map[key]bool)
	var triples []Triple
	for i := range dets {
		k := key{array: dets[i].EffectiveArray(), reader: dets[i].Reader, antenna: antennaOrd(dets[i].Antenna)}
		if seen[k] {
			continue
		}
		seen[k] = true
		t := Triple{Array: k.array, Reader: k.reader}
		if k.antenna >= 0 {
			t.Antenna = detections.Ptr(k.antenna)
		}
		triples = append(triples, t)
	}

	sort.Slice(triples, func(i, j int) bool {
		if triples[i].Array != triples[j].Array {
			return triples[i].Array < triples[j].Array
		}
		if triples[i].Reader != triples[j].Reader {
			return triples[i].Reader < triples[j].Reader
		}
		return antennaOrd(triples[i].Antenna) < antennaOrd(triples[j].Antenna)
	})

	return &Report{RunID: uuid.New(), Mode: mode, Triples: triples}
}

func antennaOrd(a *int) int {
	if a == nil {
		return -1
	}
	return *a
}

// Write prints the report as a fixed-width table for operator review.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "Topology after %s (run %s)\n", r.Mode, r.RunID)
	fmt.Fprintf(w, "%-20s %-20s %s\n", "ARRAY", "READER", "ANTENNA")
	for _, t := range r.Triples {
		ant := AntennaNA
		if t.Antenna != nil {
			ant = fmt.Sprintf("%d", *t.Antenna)
		}
		fmt.Fprintf(w, "%-20s %-20s %s\n", t.Array, t.Reader, ant)
	}
}

// String renders the report as Write would, for logging and audit storage.
func (r *Report) String() string {
	var b strings.Builder
	r.Write(&b)
	return b.String()
}
