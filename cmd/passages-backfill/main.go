// Command passages-backfill re-derives passages for a historical time range,
// processing in worker-sized windows so each run stays bounded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/riverbend-data/passage.report/internal/db"
)

func main() {
	var dbPath string
	var startStr string
	var endStr string
	var modelVer string

	flag.StringVar(&dbPath, "db", "detections.db", "path to sqlite db")
	flag.StringVar(&startStr, "start", "", "start time (RFC3339)")
	flag.StringVar(&endStr, "end", "", "end time (RFC3339)")
	flag.StringVar(&modelVer, "model", "manual-backfill", "model version string for passages")
	flag.Parse()

	if startStr == "" || endStr == "" {
		log.Fatalf("start and end must be provided")
	}

	startT, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		log.Fatalf("invalid start: %v", err)
	}
	endT, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		log.Fatalf("invalid end: %v", err)
	}

	dbConn, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	w := db.NewPassageWorker(dbConn, modelVer)

	// run the backfill in worker-window slices until the range is covered;
	// windows overlap by one window-length so cross-boundary movements are
	// not missed
	t := startT.UTC()
	for t.Before(endT.UTC()) {
		windowStart := t
		windowEnd := t.Add(2 * w.Window)
		if windowEnd.After(endT.UTC()) {
			windowEnd = endT.UTC()
		}
		fmt.Printf("backfilling window %s -> %s\n", windowStart, windowEnd)
		if err := w.RunRange(context.TODO(), windowStart, windowEnd); err != nil {
			log.Fatalf("runrange failed: %v", err)
		}
		t = t.Add(w.Window)
	}

	log.Printf("backfill complete")
}
