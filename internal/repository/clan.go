package repository

import (
	"context"
	"database/sql"
	"fmt"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type ClanRepository interface {
	Upsert(ctx context.Context, tag, name string) (*domain.Clan, error)
	GetByID(ctx context.Context, id int64) (*domain.Clan, error)
	GetByTag(ctx context.Context, tag string) (*domain.Clan, error)
}

type SQLiteClanRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewClanRepository(db *sql.DB, logger zerolog.Logger) ClanRepository {
	return &SQLiteClanRepository{db: db, logger: logger}
}

func (r *SQLiteClanRepository) Upsert(ctx context.Context, tag, name string) (*domain.Clan, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clans (tag, name) VALUES (?, ?)
		ON CONFLICT (tag) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP`,
		tag, name)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert clan %s: %w", tag, err)
	}
	return r.GetByTag(ctx, tag)
}

func (r *SQLiteClanRepository) GetByID(ctx context.Context, id int64) (*domain.Clan, error) {
	clan := &domain.Clan{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, tag, name, created_at, updated_at FROM clans WHERE id = ?", id).
		Scan(&clan.ID, &clan.Tag, &clan.Name, &clan.CreatedAt, &clan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrClanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clan %d: %w", id, err)
	}
	return clan, nil
}

func (r *SQLiteClanRepository) GetByTag(ctx context.Context, tag string) (*domain.Clan, error) {
	clan := &domain.Clan{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, tag, name, created_at, updated_at FROM clans WHERE tag = ?", tag).
		Scan(&clan.ID, &clan.Tag, &clan.Name, &clan.CreatedAt, &clan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrClanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clan %s: %w", tag, err)
	}
	return clan, nil
}
