// Package topology restructures the reader/antenna/array identifiers of a
// detection collection. Three operator modes are supported: combining up to
// four single-antenna readers into one named array, splitting a multi-antenna
// reader into two logical readers, and renaming one antenna within a reader
// or array partition.
//
// All modes are copy-transform-return: the input slice is never mutated, row
// count is preserved exactly, and no field other than array/reader/antenna is
// ever touched. Parameter validation happens before any transformation, so a
// returned error guarantees no partial output.
package topology

import (
	"fmt"
	"strconv"

	"github.com/riverbend-data/passage.report/internal/detections"
)

// Mode selects the identifier rewrite applied by Configure.
type Mode string

const (
	ModeCombine        Mode = "combine"
	ModeSplit          Mode = "split"
	ModeRenameAntennas Mode = "rename_antennas"
)

// AntennaNA is the sentinel accepted in Config.Ao1 to select records whose
// antenna value is null rather than a literal number.
const AntennaNA = "NA"

// Config carries the mode selector and the mode-specific parameters.
// Unused parameters for the selected mode are left at their zero value.
//
// The rename parameter surface allows four old/new antenna pairs but only the
// first pair is honored; supplying any of Ao2..Ao4/An2..An4 is rejected.
// Multi-antenna rename per call is a known limitation of the operation, not
// an oversight in validation.
type Config struct {
	Mode Mode `json:"mode"`

	// combine: target array plus up to four readers; the positional index
	// of each reader becomes its antenna number (R1 -> 1 ... R4 -> 4).
	ArrayName string `json:"array_name,omitempty"`
	R1        string `json:"r1,omitempty"`
	R2        string `json:"r2,omitempty"`
	R3        string `json:"r3,omitempty"`
	R4        string `json:"r4,omitempty"`

	// split: reader to split and the antenna values that move to the new
	// "<reader>_1"; everything else on that reader becomes "<reader>_2".
	ReaderName         string `json:"reader_name,omitempty"`
	NewReader1Antennas []int  `json:"new_reader_1_antennas,omitempty"`

	// rename_antennas: old/new antenna value pairs. Ao1 may be AntennaNA to
	// match null antennas. Only the first pair is supported.
	Ao1 string `json:"ao1,omitempty"`
	An1 string `json:"an1,omitempty"`
	Ao2 string `json:"ao2,omitempty"`
	An2 string `json:"an2,omitempty"`
	Ao3 string `json:"ao3,omitempty"`
	An3 string `json:"an3,omitempty"`
	Ao4 string `json:"ao4,omitempty"`
	An4 string `json:"an4,omitempty"`
}

// ConfigError reports an invalid parameter combination for the selected
// mode. It is always raised before any record is transformed.
type ConfigError struct {
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("topology config: %s", e.Reason)
	}
	return fmt.Sprintf("topology config: %s: %s", e.Param, e.Reason)
}

func configErrf(param, format string, args ...any) error {
	return &ConfigError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// Configure applies the rewrite selected by cfg and returns the new
// collection plus a distinct-triple report for operator review. The report is
// diagnostic only; callers must not derive correctness from it.
func Configure(dets []detections.Detection, cfg Config) ([]detections.Detection, *Report, error) {
	var out []detections.Detection
	var err error

	switch cfg.Mode {
	case ModeCombine:
		out, err = combine(dets, cfg)
	case ModeSplit:
		out, err = split(dets, cfg)
	case ModeRenameAntennas:
		out, err = renameAntennas(dets, cfg)
	default:
		return nil, nil, configErrf("mode", "unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, nil, err
	}

	return out, NewReport(cfg.Mode, out), nil
}

// combineReaders returns the non-empty combine readers in positional order
// (1-based), rejecting duplicates: a reader appearing twice would map one
// original antenna to two array slots.
func combineReaders(cfg Config) (map[string]int, error) {
	positions := make(map[string]int)
	for i, r := range []string{cfg.R1, cfg.R2, cfg.R3, cfg.R4} {
		if r == "" {
			continue
		}
		if _, dup := positions[r]; dup {
			return nil, configErrf(fmt.Sprintf("r%d", i+1), "reader %q supplied more than once", r)
		}
		positions[r] = i + 1
	}
	if len(positions) == 0 {
		return nil, configErrf("r1", "combine requires at least one reader")
	}
	return positions, nil
}

func combine(dets []detections.Detection, cfg Config) ([]detections.Detection, error) {
	if cfg.ArrayName == "" {
		return nil, configErrf("array_name", "combine requires an array name")
	}
	positions, err := combineReaders(cfg)
	if err != nil {
		return nil, err
	}

	out := detections.Clone(dets)
	defaultArrays(out)
	for i := range out {
		d := &out[i]
		pos, ok := positions[d.Reader]
		if !ok {
			continue
		}
		// Combine folds single-antenna readers into one array, so the
		// reader's position wholesale replaces the original antenna value.
		d.Antenna = detections.Ptr(pos)
		d.Array = detections.Ptr(cfg.ArrayName)
	}
	return out, nil
}

func split(dets []detections.Detection, cfg Config) ([]detections.Detection, error) {
	if cfg.ReaderName == "" {
		return nil, configErrf("reader_name", "split requires a reader name")
	}
	if len(cfg.NewReader1Antennas) == 0 {
		return nil, configErrf("new_reader_1_antennas", "split requires at least one antenna value")
	}

	first := make(map[int]bool, len(cfg.NewReader1Antennas))
	for _, a := range cfg.NewReader1Antennas {
		first[a] = true
	}

	out := detections.Clone(dets)
	defaultArrays(out)
	for i := range out {
		d := &out[i]
		if d.Reader != cfg.ReaderName {
			continue
		}
		if d.Antenna != nil && first[*d.Antenna] {
			d.Reader = cfg.ReaderName + "_1"
		} else {
			d.Reader = cfg.ReaderName + "_2"
		}
	}
	return out, nil
}

func renameAntennas(dets []detections.Detection, cfg Config) ([]detections.Detection, error) {
	haveReader := cfg.ReaderName != ""
	haveArray := cfg.ArrayName != ""
	switch {
	case haveReader && haveArray:
		return nil, configErrf("reader_name/array_name", "supply a reader name or an array name, not both")
	case !haveReader && !haveArray:
		return nil, configErrf("reader_name/array_name", "supply either a reader name or an array name")
	}
	for _, extra := range []struct{ param, val string }{
		{"ao2", cfg.Ao2}, {"an2", cfg.An2},
		{"ao3", cfg.Ao3}, {"an3", cfg.An3},
		{"ao4", cfg.Ao4}, {"an4", cfg.An4},
	} {
		if extra.val != "" {
			return nil, configErrf(extra.param, "only one antenna may be renamed per call")
		}
	}
	if cfg.Ao1 == "" || cfg.An1 == "" {
		return nil, configErrf("ao1/an1", "rename requires one old/new antenna pair")
	}

	matchNull := cfg.Ao1 == AntennaNA
	var oldAnt int
	if !matchNull {
		v, err := strconv.Atoi(cfg.Ao1)
		if err != nil {
			return nil, configErrf("ao1", "antenna value %q is not an integer (or %q)", cfg.Ao1, AntennaNA)
		}
		oldAnt = v
	}
	newAnt, err := strconv.Atoi(cfg.An1)
	if err != nil {
		return nil, configErrf("an1", "antenna value %q is not an integer", cfg.An1)
	}

	if haveArray {
		configured := false
		for i := range dets {
			if dets[i].HasArray() {
				configured = true
				break
			}
		}
		if !configured {
			return nil, configErrf("array_name", "no array configuration exists")
		}
	}

	out := detections.Clone(dets)
	defaultArrays(out)
	for i := range out {
		d := &out[i]
		if haveReader && d.Reader != cfg.ReaderName {
			continue
		}
		if haveArray && *d.Array != cfg.ArrayName {
			continue
		}
		if matchNull {
			if d.Antenna == nil {
				d.Antenna = detections.Ptr(newAnt)
			}
		} else if d.Antenna != nil && *d.Antenna == oldAnt {
			d.Antenna = detections.Ptr(newAnt)
		}
	}
	return out, nil
}

// defaultArrays materializes the first-time array default on every record
// that has none: the record's (pre-rewrite) reader name. Running before the
// mode-specific rewrite keeps repeated invocations composable — a record that
// already carries an array assignment is never re-defaulted.
func defaultArrays(dets []detections.Detection) {
	for i := range dets {
		if dets[i].Array == nil {
			dets[i].Array = detections.Ptr(dets[i].Reader)
		}
	}
}
