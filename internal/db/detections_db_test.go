package db

import (
	"context"
	"testing"
	"time"

	"github.com/riverbend-data/passage.report/internal/detections"
)

var testT0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func TestInsertAndQueryDetections(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	input := []detections.Detection{
		testDetection("dam_1", 1, "T1", testT0),
		testDetection("dam_2", 1, "T1", testT0.Add(5*time.Minute)),
		testDetection("dam_1", -1, "T2", testT0.Add(10*time.Minute)), // null antenna
	}
	if err := db.InsertDetections(ctx, input); err != nil {
		t.Fatalf("InsertDetections failed: %v", err)
	}

	n, err := db.CountDetections(ctx)
	if err != nil {
		t.Fatalf("CountDetections failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	rows, err := db.DetectionsInRange(ctx, testT0, testT0.Add(6*time.Minute))
	if err != nil {
		t.Fatalf("DetectionsInRange failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows in range, want 2", len(rows))
	}

	r := rows[0]
	if r.Reader != "dam_1" || r.TagCode != "T1" {
		t.Errorf("row 0 = %+v, want dam_1/T1", r.Detection)
	}
	if r.Array != nil {
		t.Errorf("array should be null before topology configuration, got %q", *r.Array)
	}
	if r.Antenna == nil || *r.Antenna != 1 {
		t.Errorf("antenna = %v, want 1", r.Antenna)
	}
	if !r.DateTime.Equal(testT0) {
		t.Errorf("date_time = %s, want %s", r.DateTime, testT0)
	}

	all, err := db.AllDetections(ctx)
	if err != nil {
		t.Fatalf("AllDetections failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d rows, want 3", len(all))
	}
	if all[2].Antenna != nil {
		t.Errorf("null antenna not preserved: %v", *all[2].Antenna)
	}
}

func TestDetectionTimestampRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// sub-second precision must survive the REAL unix encoding to at least
	// millisecond resolution
	at := testT0.Add(1500 * time.Millisecond)
	if err := db.InsertDetections(ctx, []detections.Detection{testDetection("dam", 1, "T1", at)}); err != nil {
		t.Fatalf("InsertDetections failed: %v", err)
	}

	rows, err := db.AllDetections(ctx)
	if err != nil {
		t.Fatalf("AllDetections failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if got, want := rows[0].DateTime.UnixMilli(), at.UnixMilli(); got != want {
		t.Errorf("timestamp = %d, want %d", got, want)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)

	migrations, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if dirty {
		t.Fatal("fresh database reported dirty")
	}
	if version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}

	if err := db.MigrateDown(migrations); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err = db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Fatalf("version after down = %d, want 1", version)
	}

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
}
