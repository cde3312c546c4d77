// Package passage derives tagged-animal movement direction from the temporal
// ordering of detections within each (array, tag) group.
//
// The core algorithm is a pure function over an ordered sequence of
// (timestamp, antenna) observations; the collection-level Infer fans groups
// out across goroutines and merges, which is safe because groups share no
// state and the final global sort does not depend on processing order.
package passage

import (
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riverbend-data/passage.report/internal/detections"
)

// Direction labels an antenna-to-antenna transition. Antenna numbers are
// assigned downstream to upstream within an array, so an increasing antenna
// number reads as upstream movement.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Movement is one direction-bearing detection: the canonical record fields
// (time_zone intentionally dropped) plus the inferred direction and the
// absolute antenna-number distance moved. Array and Antenna are materialized
// here — a movement row can never have a null antenna or an unconfigured
// array.
type Movement struct {
	Array            string    `json:"array"`
	Reader           string    `json:"reader"`
	Antenna          int       `json:"antenna"`
	DetType          string    `json:"det_type"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	DateTime         time.Time `json:"date_time"`
	Dur              string    `json:"dur"`
	TagType          string    `json:"tag_type"`
	TagCode          string    `json:"tag_code"`
	ConsecDet        string    `json:"consec_det"`
	NoEmptyScanPrior string    `json:"no_empt_scan_prior"`
	Direction        Direction `json:"direction"`
	NoAnt            int       `json:"no_ant"`
}

// obs is one observation inside a single (array, tag) group. idx is the
// record's position in the original input and doubles as the tie-break when
// two detections share a timestamp.
type obs struct {
	idx     int
	at      time.Time
	antenna int
}

// move is a classified transition, referencing the later observation of the
// pair by its input index.
type move struct {
	idx       int
	direction Direction
	noAnt     int
}

// movements classifies the antenna transitions of one group. seq must
// already be time-ordered. The first observation has no predecessor and
// never yields a movement; zero-distance transitions (same antenna twice)
// are dropped.
func movements(seq []obs) []move {
	var out []move
	for i := 1; i < len(seq); i++ {
		diff := seq[i].antenna - seq[i-1].antenna
		switch {
		case diff > 0:
			out = append(out, move{idx: seq[i].idx, direction: Up, noAnt: diff})
		case diff < 0:
			out = append(out, move{idx: seq[i].idx, direction: Down, noAnt: -diff})
		}
	}
	return out
}

type groupKey struct {
	array string
	tag   string
}

// Infer derives movement events from a detection collection, configured or
// raw: records with no array assignment are grouped under their reader name.
// Null-antenna rows are dropped up front. Within a group, detections are
// ordered by timestamp with ties keeping their input order; this tie-break is
// part of the contract. The result is sorted by (array, tag_code, date_time)
// and the input is never modified.
func Infer(dets []detections.Detection) []Movement {
	groups := make(map[groupKey][]obs)
	for i := range dets {
		if dets[i].Antenna == nil {
			continue
		}
		k := groupKey{array: dets[i].EffectiveArray(), tag: dets[i].TagCode}
		groups[k] = append(groups[k], obs{idx: i, at: dets[i].DateTime, antenna: *dets[i].Antenna})
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}

	perGroup := make([][]move, len(keys))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for slot, k := range keys {
		seq := groups[k]
		g.Go(func() error {
			// stable: equal timestamps keep input order (obs are appended
			// in input order)
			sort.SliceStable(seq, func(a, b int) bool {
				return seq[a].at.Before(seq[b].at)
			})
			perGroup[slot] = movements(seq)
			return nil
		})
	}
	// group workers are pure and never fail
	_ = g.Wait()

	var out []Movement
	for _, ms := range perGroup {
		for _, m := range ms {
			d := &dets[m.idx]
			out = append(out, Movement{
				Array:            d.EffectiveArray(),
				Reader:           d.Reader,
				Antenna:          *d.Antenna,
				DetType:          d.DetType,
				Date:             d.Date,
				Time:             d.Time,
				DateTime:         d.DateTime,
				Dur:              d.Dur,
				TagType:          d.TagType,
				TagCode:          d.TagCode,
				ConsecDet:        d.ConsecDet,
				NoEmptyScanPrior: d.NoEmptyScanPrior,
				Direction:        m.direction,
				NoAnt:            m.noAnt,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Array != out[j].Array {
			return out[i].Array < out[j].Array
		}
		if out[i].TagCode != out[j].TagCode {
			return out[i].TagCode < out[j].TagCode
		}
		return out[i].DateTime.Before(out[j].DateTime)
	})
	return out
}
