package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/riverbend-data/passage.report/internal/detections"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passage_test.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testDetection builds a canonical record with sensible defaults. antenna < 0
// stores a null antenna.
func testDetection(reader string, antenna int, tag string, at time.Time) detections.Detection {
	d := detections.Detection{
		Reader:           reader,
		DetType:          "I",
		Date:             at.Format("2006-01-02"),
		Time:             at.Format("15:04:05"),
		DateTime:         at,
		TimeZone:         "UTC",
		Dur:              "00:00:01",
		TagType:          "A",
		TagCode:          tag,
		ConsecDet:        "1",
		NoEmptyScanPrior: "0",
	}
	if antenna >= 0 {
		d.Antenna = detections.Ptr(antenna)
	}
	return d
}
