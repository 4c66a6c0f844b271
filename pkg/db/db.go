/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db pkg/db/db.go provides the SQLite state store for siteradar.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// SQL statements for database initialization. Timestamps are unix
	// milliseconds so ordering and range scans are exact.
	createTablesSQL = `
	-- Aggregate status, always a single row
	CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_updated INTEGER NOT NULL,
		site_count INTEGER NOT NULL,
		sites_up INTEGER NOT NULL,
		home_site_down BOOLEAN NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	-- Currently open issues
	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_code INTEGER NOT NULL,
		site_name TEXT NOT NULL,
		category TEXT NOT NULL,
		service TEXT NOT NULL,
		target TEXT NOT NULL,
		reported_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (site_code, service)
	);

	-- Append-only event history
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_code INTEGER NOT NULL,
		site_name TEXT NOT NULL,
		category TEXT NOT NULL,
		service TEXT NOT NULL,
		target TEXT NOT NULL,
		datetime INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_datetime
		ON events(datetime DESC);

	CREATE TRIGGER IF NOT EXISTS events_no_update BEFORE UPDATE ON events
	BEGIN
		SELECT RAISE(ABORT, 'events are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS events_no_delete BEFORE DELETE ON events
	BEGIN
		SELECT RAISE(ABORT, 'events are append-only');
	END;
	`

	issueColumns = `id, site_code, site_name, category, service, target, reported_at, created_at`
	eventColumns = `id, site_code, site_name, category, service, target, datetime, created_at`
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// DB represents the database connection and operations.
type DB struct {
	*sql.DB
	now func() time.Time
}

var _ Service = (*DB)(nil)

// New opens the database at dbPath and initializes the schema.
func New(ctx context.Context, dbPath string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// SQLite allows a single writer; this also keeps :memory: databases alive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		closeQuietly(sqlDB)

		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			closeQuietly(sqlDB)

			return nil, fmt.Errorf("%w: %q: %w", ErrFailedToEnableWAL, pragma, err)
		}
	}

	db := &DB{DB: sqlDB, now: time.Now}
	if err := db.initSchema(ctx); err != nil {
		closeQuietly(sqlDB)

		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return db, nil
}

func closeQuietly(sqlDB *sql.DB) {
	if err := sqlDB.Close(); err != nil {
		logger.For("db").WithError(err).Warn("failed to close database")
	}
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, createTablesSQL)

	return err
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) GetMeta(ctx context.Context) (*models.Meta, error) {
	const query = `
		SELECT last_updated, site_count, sites_up, home_site_down, created_at
		FROM meta
		WHERE id = 1
	`

	var (
		meta                 models.Meta
		lastUpdated, created int64
	)

	err := db.QueryRowContext(ctx, query).Scan(
		&lastUpdated,
		&meta.SiteCount,
		&meta.SitesUp,
		&meta.HomeSiteDown,
		&created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w meta: %w", ErrFailedToQuery, err)
	}

	meta.LastUpdated = fromMillis(lastUpdated)
	meta.CreatedAt = fromMillis(created)

	return &meta, nil
}

func (db *DB) CreateMeta(ctx context.Context, meta *models.Meta) error {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = db.now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO meta (id, last_updated, site_count, sites_up, home_site_down, created_at)
		VALUES (1, ?, ?, ?, ?, ?)
	`, toMillis(meta.LastUpdated), meta.SiteCount, meta.SitesUp, meta.HomeSiteDown, toMillis(meta.CreatedAt))
	if err != nil {
		return fmt.Errorf("%w meta: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) UpdateMeta(ctx context.Context, meta *models.Meta) error {
	result, err := db.ExecContext(ctx, `
		UPDATE meta
		SET last_updated = ?,
			site_count = ?,
			sites_up = ?,
			home_site_down = ?
		WHERE id = 1
	`, toMillis(meta.LastUpdated), meta.SiteCount, meta.SitesUp, meta.HomeSiteDown)
	if err != nil {
		return fmt.Errorf("%w meta: %w", ErrFailedToUpdate, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w meta: %w", ErrFailedToUpdate, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *DB) ListIssues(ctx context.Context) ([]models.Issue, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w issues: %w", ErrFailedToQuery, err)
	}
	defer closeRows(rows)

	var issues []models.Issue

	for rows.Next() {
		var (
			issue             models.Issue
			category          string
			reported, created int64
		)

		if err := rows.Scan(
			&issue.ID,
			&issue.SiteCode,
			&issue.SiteName,
			&category,
			&issue.Service,
			&issue.Target,
			&reported,
			&created,
		); err != nil {
			return nil, fmt.Errorf("%w issue row: %w", ErrFailedToScan, err)
		}

		issue.Category = models.Category(category)
		issue.ReportedAt = fromMillis(reported)
		issue.CreatedAt = fromMillis(created)
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w issues: %w", ErrFailedToQuery, err)
	}

	return issues, nil
}

func (db *DB) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = db.now().UTC()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO issues (site_code, site_name, category, service, target, reported_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		issue.SiteCode,
		issue.SiteName,
		string(issue.Category),
		issue.Service,
		issue.Target,
		toMillis(issue.ReportedAt),
		toMillis(issue.CreatedAt))
	if err != nil {
		return fmt.Errorf("%w issue %s: %w", ErrFailedToInsert, issue.Key(), err)
	}

	if id, err := result.LastInsertId(); err == nil {
		issue.ID = id
	}

	return nil
}

func (db *DB) DeleteIssue(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w issue %d: %w", ErrFailedToDelete, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w issue %d: %w", ErrFailedToDelete, id, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("issue %d: %w", id, ErrNotFound)
	}

	return nil
}

func (db *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = db.now().UTC()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO events (site_code, site_name, category, service, target, datetime, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.SiteCode,
		event.SiteName,
		string(event.Category),
		event.Service,
		event.Target,
		toMillis(event.Datetime),
		toMillis(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("%w event: %w", ErrFailedToInsert, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}

	return nil
}

// ListEvents returns the newest events first.
func (db *DB) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY datetime DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w events: %w", ErrFailedToQuery, err)
	}
	defer closeRows(rows)

	return scanEvents(rows)
}

// ListEventsBefore returns up to limit events strictly older than before, newest first.
func (db *DB) ListEventsBefore(ctx context.Context, before time.Time, limit int) ([]models.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE datetime < ?
		ORDER BY datetime DESC, id DESC
		LIMIT ?
	`, toMillis(before), limit)
	if err != nil {
		return nil, fmt.Errorf("%w events before: %w", ErrFailedToQuery, err)
	}
	defer closeRows(rows)

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event

	for rows.Next() {
		var (
			event             models.Event
			category          string
			datetime, created int64
		)

		if err := rows.Scan(
			&event.ID,
			&event.SiteCode,
			&event.SiteName,
			&category,
			&event.Service,
			&event.Target,
			&datetime,
			&created,
		); err != nil {
			return nil, fmt.Errorf("%w event row: %w", ErrFailedToScan, err)
		}

		event.Category = models.Category(category)
		event.Datetime = fromMillis(datetime)
		event.CreatedAt = fromMillis(created)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w events: %w", ErrFailedToQuery, err)
	}

	return events, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.For("db").WithError(err).Warn("failed to close rows")
	}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
