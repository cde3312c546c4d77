package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/riverbend-data/passage.report/internal/detections"
	"github.com/riverbend-data/passage.report/internal/topology"
)

// TopologyRun is one audit row recording a topology rewrite applied to the
// stored collection.
type TopologyRun struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	Params    string    `json:"params"`
	Report    string    `json:"report"`
	AppliedAt time.Time `json:"applied_at"`
}

// ApplyTopology runs a topology rewrite over the entire stored detection
// collection and persists the result in one transaction, together with an
// audit row. Validation failures surface before any row is written; the
// stored collection is untouched on error.
func (db *DB) ApplyTopology(ctx context.Context, cfg topology.Config) (*topology.Report, error) {
	rows, err := db.AllDetections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load detections: %w", err)
	}

	dets := make([]detections.Detection, len(rows))
	for i := range rows {
		dets[i] = rows[i].Detection
	}

	out, report, err := topology.Configure(dets, cfg)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE detections SET array_name = ?, reader = ?, antenna = ? WHERE detection_id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for i := range out {
		if _, err := stmt.ExecContext(ctx, out[i].Array, out[i].Reader, out[i].Antenna, rows[i].ID); err != nil {
			return nil, fmt.Errorf("failed to rewrite detection %d: %w", rows[i].ID, err)
		}
	}

	params, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO topology_runs (run_id, mode, params, report) VALUES (?, ?, ?, ?)`,
		report.RunID.String(), string(cfg.Mode), string(params), report.String(),
	); err != nil {
		return nil, fmt.Errorf("failed to record topology run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return report, nil
}

// TopologyRuns lists the audit trail, most recent first.
func (db *DB) TopologyRuns(ctx context.Context) ([]TopologyRun, error) {
	rows, err := db.QueryContext(ctx, `SELECT run_id, mode, params, report, applied_at FROM topology_runs ORDER BY applied_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopologyRun
	for rows.Next() {
		var r TopologyRun
		var applied float64
		if err := rows.Scan(&r.RunID, &r.Mode, &r.Params, &r.Report, &applied); err != nil {
			return nil, err
		}
		r.AppliedAt = fromUnixSeconds(applied, "")
		out = append(out, r)
	}
	return out, rows.Err()
}
