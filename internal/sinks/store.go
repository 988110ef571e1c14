// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// Series names stored for every run, in column order.
var SeriesFields = []string{"ts", "ts_realtime", "x", "y", "z", "acts", "diffs", "delays", "states"}

// ErrRunNotFound is returned when a run label has no stored group.
var ErrRunNotFound = errors.New("run not found")

const storeSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		label TEXT PRIMARY KEY,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS run_series (
		run_label TEXT NOT NULL,
		field TEXT NOT NULL,
		length INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_label, field),
		FOREIGN KEY (run_label) REFERENCES runs(label)
	);
	CREATE TABLE IF NOT EXISTS run_points (
		run_label TEXT NOT NULL,
		field TEXT NOT NULL,
		idx INTEGER NOT NULL,
		value DOUBLE NOT NULL,
		PRIMARY KEY (run_label, field, idx)
	);
`

// RunStore is an append-only store of per-run series. Each run label is a
// group holding one growable series per field.
type RunStore struct {
	db *sql.DB
}

// OpenRunStore opens (or creates) the store at path.
func OpenRunStore(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run store schema: %w", err)
	}
	return &RunStore{db: db}, nil
}

func (s *RunStore) Name() string { return "runstore" }

// Close closes the database.
func (s *RunStore) Close() error { return s.db.Close() }

// Write appends the chunk to its run group, creating the group and its
// series on first use. Existing samples are never overwritten.
func (s *RunStore) Write(ctx context.Context, c *sleep.Chunk) error {
	if c.RunLabel == "" {
		return errors.New("chunk has no run label")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureRun(ctx, tx, c.RunLabel); err != nil {
		return err
	}
	ins, err := tx.PrepareContext(ctx,
		"INSERT INTO run_points (run_label, field, idx, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, field := range SeriesFields {
		var length int64
		err := tx.QueryRowContext(ctx,
			"SELECT length FROM run_series WHERE run_label = ? AND field = ?",
			c.RunLabel, field).Scan(&length)
		if err != nil {
			return fmt.Errorf("series %s/%s: %w", c.RunLabel, field, err)
		}
		for i := 0; i < c.Len(); i++ {
			if _, err := ins.ExecContext(ctx, c.RunLabel, field, length+int64(i), fieldValue(c, field, i)); err != nil {
				return fmt.Errorf("append %s/%s: %w", c.RunLabel, field, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE run_series SET length = ? WHERE run_label = ? AND field = ?",
			length+int64(c.Len()), c.RunLabel, field); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func ensureRun(ctx context.Context, tx *sql.Tx, label string) error {
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO runs (label) VALUES (?)", label); err != nil {
		return fmt.Errorf("create run %s: %w", label, err)
	}
	for _, field := range SeriesFields {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO run_series (run_label, field) VALUES (?, ?)",
			label, field); err != nil {
			return fmt.Errorf("create series %s/%s: %w", label, field, err)
		}
	}
	return nil
}

func fieldValue(c *sleep.Chunk, field string, i int) float64 {
	switch field {
	case "ts":
		return float64(c.TsOffsetMs[i])
	case "ts_realtime":
		return float64(c.TsWallMs[i])
	case "x":
		return c.Raw[i][0]
	case "y":
		return c.Raw[i][1]
	case "z":
		return c.Raw[i][2]
	case "acts":
		return c.Activity[i]
	case "diffs":
		return c.Diff[i]
	case "delays":
		return c.Delay[i]
	case "states":
		return float64(c.State[i])
	}
	return 0
}

// ListRuns returns every stored run label, oldest first.
func (s *RunStore) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT label FROM runs ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// LatestRun returns the most recently created run label.
func (s *RunStore) LatestRun(ctx context.Context) (string, error) {
	var label string
	err := s.db.QueryRowContext(ctx, "SELECT label FROM runs ORDER BY rowid DESC LIMIT 1").Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	return label, err
}

// LoadSeries returns one field of a run in sample order.
func (s *RunStore) LoadSeries(ctx context.Context, label, field string) ([]float64, error) {
	var length int64
	err := s.db.QueryRowContext(ctx,
		"SELECT length FROM run_series WHERE run_label = ? AND field = ?", label, field).Scan(&length)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, label, field)
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT value FROM run_points WHERE run_label = ? AND field = ? ORDER BY idx", label, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]float64, 0, length)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LoadRun reassembles a whole run as a single chunk.
func (s *RunStore) LoadRun(ctx context.Context, label string) (*sleep.Chunk, error) {
	series := make(map[string][]float64, len(SeriesFields))
	for _, f := range SeriesFields {
		v, err := s.LoadSeries(ctx, label, f)
		if err != nil {
			return nil, err
		}
		series[f] = v
	}
	n := len(series["ts"])
	for _, f := range SeriesFields {
		if len(series[f]) != n {
			return nil, fmt.Errorf("run %s: series %s has %d samples, want %d", label, f, len(series[f]), n)
		}
	}
	c := &sleep.Chunk{
		RunLabel:   label,
		TsOffsetMs: make([]int64, n),
		TsWallMs:   make([]int64, n),
		Raw:        make([][3]float64, n),
		Activity:   series["acts"],
		Diff:       series["diffs"],
		Delay:      series["delays"],
		State:      make([]sleep.State, n),
	}
	for i := 0; i < n; i++ {
		c.TsOffsetMs[i] = int64(series["ts"][i])
		c.TsWallMs[i] = int64(series["ts_realtime"][i])
		c.Raw[i] = [3]float64{series["x"][i], series["y"][i], series["z"][i]}
		c.State[i] = sleep.State(series["states"][i])
	}
	return c, nil
}
