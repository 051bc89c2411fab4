package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// tokens signed with an older version are rejected
const keyTokenVersion = "auth.token_version"

// Repo keeps the admin token version in the settings table.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) TokenVersion(ctx context.Context) (int, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT value
		FROM settings
		WHERE key = ?
	`, keyTokenVersion)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return v, nil
}

// BumpTokenVersion revokes every outstanding admin token and returns the new version.
func (r *Repo) BumpTokenVersion(ctx context.Context) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bump token version: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, '1', CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = CAST(CAST(settings.value AS INTEGER) + 1 AS TEXT),
			updated_at = CURRENT_TIMESTAMP
	`, keyTokenVersion)
	if err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}

	var raw string
	if err = tx.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, keyTokenVersion).Scan(&raw); err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bump token version: %w", err)
	}
	return v, nil
}
