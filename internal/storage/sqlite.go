package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"statusbot/internal/model"
	"statusbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateDestination inserts a new destination and populates its ID and
// CreatedAt.
func (s *SQLite) CreateDestination(ctx context.Context, d *model.Destination) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO destinations (guild_id, channel_id, created_at) VALUES (?, ?, ?)`,
		d.GuildID, d.ChannelID, now,
	)
	if err != nil {
		return fmt.Errorf("insert destination: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetDestination returns the destination registered for the given
// guild/channel pair, or ErrNotFound.
func (s *SQLite) GetDestination(ctx context.Context, guildID, channelID string) (*model.Destination, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, channel_id, created_at
		 FROM destinations WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID,
	)
	d, err := scanDestination(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListDestinations returns all destinations registered in a guild.
func (s *SQLite) ListDestinations(ctx context.Context, guildID string) ([]model.Destination, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, channel_id, created_at
		 FROM destinations WHERE guild_id = ? ORDER BY id`, guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query destinations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDestinations(rows)
}

// ListAllDestinations returns every registered destination across all
// guilds; the scheduler fans notifications out over this list.
func (s *SQLite) ListAllDestinations(ctx context.Context) ([]model.Destination, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, channel_id, created_at FROM destinations ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query destinations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDestinations(rows)
}

// DeleteDestination removes a destination and its filter rules.
func (s *SQLite) DeleteDestination(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM filters WHERE destination_id = ?`, id); err != nil {
		return fmt.Errorf("delete filters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM destinations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete destination: %w", err)
	}
	return tx.Commit()
}

// AddFilter inserts a filter rule unless the same pattern is already
// present; it reports whether a row was created.
func (s *SQLite) AddFilter(ctx context.Context, f *model.FilterRule) (bool, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO filters (destination_id, pattern, created_at) VALUES (?, ?, ?)`,
		f.DestinationID, f.Pattern, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert filter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	f.CreatedAt, _ = time.Parse(timeLayout, now)
	return true, nil
}

// ListFilters returns all filter rules for the given destination.
func (s *SQLite) ListFilters(ctx context.Context, destinationID int64) ([]model.FilterRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, destination_id, pattern, created_at FROM filters
		 WHERE destination_id = ? ORDER BY id`, destinationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var filters []model.FilterRule
	for rows.Next() {
		var f model.FilterRule
		var createdStr string
		if err := rows.Scan(&f.ID, &f.DestinationID, &f.Pattern, &createdStr); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		f.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// RemoveFilter deletes a rule by pattern and reports whether it existed.
func (s *SQLite) RemoveFilter(ctx context.Context, destinationID int64, pattern string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM filters WHERE destination_id = ? AND pattern = ?`,
		destinationID, pattern,
	)
	if err != nil {
		return false, fmt.Errorf("delete filter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearFilters removes every rule of a destination.
func (s *SQLite) ClearFilters(ctx context.Context, destinationID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM filters WHERE destination_id = ?`, destinationID)
	if err != nil {
		return fmt.Errorf("clear filters: %w", err)
	}
	return nil
}

// GetSetting returns a settings value and whether it is set.
func (s *SQLite) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// SetSetting upserts a settings value.
func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDestination(row scannable) (*model.Destination, error) {
	var d model.Destination
	var created sql.NullString
	err := row.Scan(&d.ID, &d.GuildID, &d.ChannelID, &created)
	if err != nil {
		return nil, err
	}
	if created.Valid {
		d.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &d, nil
}

func scanDestinations(rows *sql.Rows) ([]model.Destination, error) {
	var dests []model.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		dests = append(dests, *d)
	}
	return dests, rows.Err()
}
