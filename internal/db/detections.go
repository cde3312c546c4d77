package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverbend-data/passage.report/internal/detections"
)

// DetectionRow is a stored detection with its rowid attached.
type DetectionRow struct {
	ID int64 `json:"id"`
	detections.Detection
}

const detectionColumns = `array_name, reader, antenna, det_type, det_date, det_time, date_time_unix, time_zone, dur, tag_type, tag_code, consec_det, no_empt_scan_prior`

// unixSeconds converts a timestamp to the REAL unix-seconds encoding used in
// the schema.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// fromUnixSeconds reconstructs a timestamp in the named zone. Unknown or
// empty zone names fall back to UTC; the stored instant is unaffected either
// way.
func fromUnixSeconds(v float64, zone string) time.Time {
	t := time.Unix(0, int64(v*1e9))
	if zone == "" {
		return t.UTC()
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// InsertDetections stores a batch of canonical records in one transaction.
func (db *DB) InsertDetections(ctx context.Context, dets []detections.Detection) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO detections (`+detectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range dets {
		d := &dets[i]
		if _, err := stmt.ExecContext(ctx,
			d.Array, d.Reader, d.Antenna, d.DetType, d.Date, d.Time,
			unixSeconds(d.DateTime), d.TimeZone, d.Dur, d.TagType, d.TagCode,
			d.ConsecDet, d.NoEmptyScanPrior,
		); err != nil {
			return fmt.Errorf("failed to insert detection for tag %s: %w", d.TagCode, err)
		}
	}
	return tx.Commit()
}

// DetectionsInRange returns stored detections whose timestamp falls in
// [start, end], ordered by timestamp then rowid.
func (db *DB) DetectionsInRange(ctx context.Context, start, end time.Time) ([]DetectionRow, error) {
	return db.queryDetections(ctx,
		`SELECT detection_id, `+detectionColumns+` FROM detections WHERE date_time_unix BETWEEN ? AND ? ORDER BY date_time_unix, detection_id`,
		unixSeconds(start), unixSeconds(end))
}

// AllDetections returns the full stored collection ordered by timestamp then
// rowid.
func (db *DB) AllDetections(ctx context.Context) ([]DetectionRow, error) {
	return db.queryDetections(ctx,
		`SELECT detection_id, `+detectionColumns+` FROM detections ORDER BY date_time_unix, detection_id`)
}

func (db *DB) queryDetections(ctx context.Context, query string, args ...any) ([]DetectionRow, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DetectionRow
	for rows.Next() {
		var r DetectionRow
		var array sql.NullString
		var antenna sql.NullInt64
		var ts float64
		if err := rows.Scan(&r.ID, &array, &r.Reader, &antenna, &r.DetType, &r.Date, &r.Time, &ts, &r.TimeZone, &r.Dur, &r.TagType, &r.TagCode, &r.ConsecDet, &r.NoEmptyScanPrior); err != nil {
			return nil, err
		}
		if array.Valid {
			r.Array = detections.Ptr(array.String)
		}
		if antenna.Valid {
			r.Antenna = detections.Ptr(int(antenna.Int64))
		}
		r.DateTime = fromUnixSeconds(ts, r.TimeZone)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountDetections returns the number of stored detections.
func (db *DB) CountDetections(ctx context.Context) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&n)
	return n, err
}
