package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"anihub/pkg/models"
)

const keyLanguage = "language"

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Get returns the stored value for key. ok is false when the key was never set.
func (r *Repo) Get(ctx context.Context, key string) (value string, updatedAt time.Time, ok bool, err error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT value, updated_at
		FROM settings
		WHERE key = ?
	`, key)

	if err := row.Scan(&value, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, updatedAt, true, nil
}

func (r *Repo) Put(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// Language returns the persisted language, if any.
func (r *Repo) Language(ctx context.Context) (models.Language, bool, error) {
	v, _, ok, err := r.Get(ctx, keyLanguage)
	if err != nil || !ok {
		return "", false, err
	}
	lang, err := models.ParseLanguage(v)
	if err != nil {
		return "", false, fmt.Errorf("stored language: %w", err)
	}
	return lang, true, nil
}

func (r *Repo) SaveLanguage(ctx context.Context, lang models.Language) error {
	return r.Put(ctx, keyLanguage, string(lang))
}
