package db

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/riverbend-data/passage.report/internal/detections"
	"github.com/riverbend-data/passage.report/internal/passage"
)

// PassageWorker periodically re-derives movement events from recently stored
// detections and upserts them into passages. Designed to run every 15
// minutes over the last 20 minutes (the overlap lets late-arriving rows
// update existing passages; stable keys make that an update, not a dupe).
type PassageWorker struct {
	DB           *DB
	ModelVersion string
	Interval     time.Duration // how often to run (e.g., 15m)
	Window       time.Duration // lookback window (e.g., 20m)
	StopChan     chan struct{}
}

func NewPassageWorker(db *DB, modelVersion string) *PassageWorker {
	return &PassageWorker{
		DB:           db,
		ModelVersion: modelVersion,
		Interval:     15 * time.Minute,
		Window:       20 * time.Minute,
		StopChan:     make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *PassageWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					log.Printf("passage worker run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *PassageWorker) Stop() {
	close(w.StopChan)
}

// RunOnce processes the last w.Window ending now.
func (w *PassageWorker) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	return w.RunRange(ctx, now.Add(-w.Window), now)
}

// RunFullHistory processes the full stored detection range.
func (w *PassageWorker) RunFullHistory(ctx context.Context) error {
	var start, end sql.NullFloat64
	if err := w.DB.QueryRowContext(ctx, `SELECT MIN(date_time_unix), MAX(date_time_unix) FROM detections`).Scan(&start, &end); err != nil {
		return err
	}
	if !start.Valid || !end.Valid {
		log.Printf("passage worker full-history run skipped (no detections)")
		return nil
	}
	return w.RunRange(ctx, fromUnixSeconds(start.Float64, ""), fromUnixSeconds(end.Float64, ""))
}

// RunRange loads detections in [start, end], infers movements and upserts
// them. A tag's first detection inside the window has no predecessor, so a
// movement spanning the window edge is only derived once the window covers
// both detections — the overlap between consecutive runs exists for exactly
// that reason.
func (w *PassageWorker) RunRange(ctx context.Context, start, end time.Time) error {
	rows, err := w.DB.DetectionsInRange(ctx, start, end)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	dets := make([]detections.Detection, len(rows))
	for i := range rows {
		dets[i] = rows[i].Detection
	}

	moves := passage.Infer(dets)
	if len(moves) == 0 {
		return nil
	}
	return w.DB.UpsertPassages(ctx, moves, w.ModelVersion)
}
