package db

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverbend-data/passage.report/internal/passage"
)

// PassageRow is a stored movement event with its key and provenance.
type PassageRow struct {
	ID           int64  `json:"id"`
	Key          string `json:"key"`
	ModelVersion string `json:"model_version"`
	passage.Movement
}

// passageKey builds the stable upsert key for a movement. End-state fields
// (direction, no_ant) are deliberately excluded so a re-run that reclassifies
// a movement updates the existing row instead of inserting a second one.
func passageKey(m *passage.Movement, modelVersion string) string {
	raw := fmt.Sprintf("%s|%s|%d|%s", m.Array, m.TagCode, m.DateTime.UnixNano(), modelVersion)
	return fmt.Sprintf("%x", sha1.Sum([]byte(raw)))
}

// UpsertPassages stores movements in one transaction, keyed so repeated runs
// over the same window are idempotent.
func (db *DB) UpsertPassages(ctx context.Context, moves []passage.Movement, modelVersion string) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages (
		passage_key, array_name, reader, antenna, det_type, det_date, det_time,
		date_time_unix, dur, tag_type, tag_code, consec_det, no_empt_scan_prior,
		direction, no_ant, model_version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(passage_key) DO UPDATE SET
		reader=excluded.reader, antenna=excluded.antenna,
		direction=excluded.direction, no_ant=excluded.no_ant,
		updated_at=UNIXEPOCH('subsec')`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range moves {
		m := &moves[i]
		if _, err := stmt.ExecContext(ctx,
			passageKey(m, modelVersion), m.Array, m.Reader, m.Antenna,
			m.DetType, m.Date, m.Time, unixSeconds(m.DateTime), m.Dur,
			m.TagType, m.TagCode, m.ConsecDet, m.NoEmptyScanPrior,
			string(m.Direction), m.NoAnt, modelVersion,
		); err != nil {
			return fmt.Errorf("failed to upsert passage for tag %s: %w", m.TagCode, err)
		}
	}
	return tx.Commit()
}

// PassagesInRange returns stored movements in [start, end] in the canonical
// (array, tag_code, date_time) order.
func (db *DB) PassagesInRange(ctx context.Context, start, end time.Time) ([]PassageRow, error) {
	return db.queryPassages(ctx,
		`SELECT passage_id, passage_key, model_version, array_name, reader, antenna, det_type, det_date, det_time, date_time_unix, dur, tag_type, tag_code, consec_det, no_empt_scan_prior, direction, no_ant
		 FROM passages WHERE date_time_unix BETWEEN ? AND ?
		 ORDER BY array_name, tag_code, date_time_unix`,
		unixSeconds(start), unixSeconds(end))
}

// AllPassages returns every stored movement in the canonical order.
func (db *DB) AllPassages(ctx context.Context) ([]PassageRow, error) {
	return db.queryPassages(ctx,
		`SELECT passage_id, passage_key, model_version, array_name, reader, antenna, det_type, det_date, det_time, date_time_unix, dur, tag_type, tag_code, consec_det, no_empt_scan_prior, direction, no_ant
		 FROM passages ORDER BY array_name, tag_code, date_time_unix`)
}

func (db *DB) queryPassages(ctx context.Context, query string, args ...any) ([]PassageRow, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PassageRow
	for rows.Next() {
		var r PassageRow
		var ts float64
		var direction string
		if err := rows.Scan(&r.ID, &r.Key, &r.ModelVersion, &r.Array, &r.Reader, &r.Antenna, &r.DetType, &r.Date, &r.Time, &ts, &r.Dur, &r.TagType, &r.TagCode, &r.ConsecDet, &r.NoEmptyScanPrior, &direction, &r.NoAnt); err != nil {
			return nil, err
		}
		r.DateTime = fromUnixSeconds(ts, "")
		r.Direction = passage.Direction(direction)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PurgePassages deletes stored movements for one model version and returns
// the number removed.
func (db *DB) PurgePassages(ctx context.Context, modelVersion string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM passages WHERE model_version = ?`, modelVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
