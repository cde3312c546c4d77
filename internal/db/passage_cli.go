package db

import (
	"context"
	"fmt"
	"io"
	"time"
)

// PassageCLI provides CLI operations for passage data management. It wraps
// PassageWorker and DB methods behind a testable interface for the
// `passage-report passages` subcommand.
type PassageCLI struct {
	DB           *DB
	ModelVersion string
	Output       io.Writer // where to write output (os.Stdout by default)
}

// NewPassageCLI creates a new PassageCLI instance.
func NewPassageCLI(db *DB, modelVersion string, output io.Writer) *PassageCLI {
	return &PassageCLI{
		DB:           db,
		ModelVersion: modelVersion,
		Output:       output,
	}
}

// PassageStats summarizes the stored passages.
type PassageStats struct {
	TotalPassages      int64
	ModelVersionCounts map[string]int64
	DirectionCounts    map[string]int64
}

// Analyse prints passage statistics and returns them for programmatic use.
func (c *PassageCLI) Analyse(ctx context.Context) (*PassageStats, error) {
	stats := &PassageStats{
		ModelVersionCounts: make(map[string]int64),
		DirectionCounts:    make(map[string]int64),
	}

	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&stats.TotalPassages); err != nil {
		return nil, fmt.Errorf("failed to analyse passages: %w", err)
	}

	rows, err := c.DB.QueryContext(ctx, `SELECT model_version, COUNT(*) FROM passages GROUP BY model_version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var mv string
		var n int64
		if err := rows.Scan(&mv, &n); err != nil {
			return nil, err
		}
		stats.ModelVersionCounts[mv] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	drows, err := c.DB.QueryContext(ctx, `SELECT direction, COUNT(*) FROM passages GROUP BY direction`)
	if err != nil {
		return nil, err
	}
	defer drows.Close()
	for drows.Next() {
		var dir string
		var n int64
		if err := drows.Scan(&dir, &n); err != nil {
			return nil, err
		}
		stats.DirectionCounts[dir] = n
	}
	if err := drows.Err(); err != nil {
		return nil, err
	}

	fmt.Fprintf(c.Output, "Passage Statistics\n")
	fmt.Fprintf(c.Output, "==================\n")
	fmt.Fprintf(c.Output, "Total passages: %d\n\n", stats.TotalPassages)

	fmt.Fprintf(c.Output, "By model version:\n")
	for mv, count := range stats.ModelVersionCounts {
		fmt.Fprintf(c.Output, "  %-20s %d\n", mv, count)
	}

	fmt.Fprintf(c.Output, "\nBy direction:\n")
	for dir, count := range stats.DirectionCounts {
		fmt.Fprintf(c.Output, "  %-20s %d\n", dir, count)
	}

	return stats, nil
}

// Rebuild re-derives passages for [start, end] (full history when both are
// zero) under the CLI's model version.
func (c *PassageCLI) Rebuild(ctx context.Context, start, end time.Time) error {
	w := NewPassageWorker(c.DB, c.ModelVersion)
	var err error
	if start.IsZero() && end.IsZero() {
		fmt.Fprintf(c.Output, "Rebuilding passages over full history\n")
		err = w.RunFullHistory(ctx)
	} else {
		fmt.Fprintf(c.Output, "Rebuilding passages %s -> %s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
		err = w.RunRange(ctx, start, end)
	}
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	fmt.Fprintf(c.Output, "Done\n")
	return nil
}

// Purge deletes passages for one model version.
func (c *PassageCLI) Purge(ctx context.Context, modelVersion string) error {
	if modelVersion == "" {
		return fmt.Errorf("model version is required for purge")
	}
	n, err := c.DB.PurgePassages(ctx, modelVersion)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	fmt.Fprintf(c.Output, "Deleted %d passages for model version %s\n", n, modelVersion)
	return nil
}
