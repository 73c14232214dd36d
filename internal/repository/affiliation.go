package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type AffiliationRepository interface {
	GetOrCreate(ctx context.Context, userID, clanID int64, role domain.ClanRole, trackedSince time.Time) (*domain.ClanAffiliation, error)
	GetByID(ctx context.Context, id int64) (*domain.ClanAffiliation, error)
	ListActiveByClan(ctx context.Context, clanID int64) ([]*domain.ClanAffiliation, error)
	ClearRole(ctx context.Context, id int64) error
}

type SQLiteAffiliationRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAffiliationRepository(db *sql.DB, logger zerolog.Logger) AffiliationRepository {
	return &SQLiteAffiliationRepository{db: db, logger: logger}
}

// GetOrCreate returns the affiliation for (user, clan), creating it on
// first membership. Rejoining a clan reuses the original row and updates
// the role; tracked_since keeps its first value so strike denominators see
// the earliest membership day.
func (r *SQLiteAffiliationRepository) GetOrCreate(ctx context.Context, userID, clanID int64, role domain.ClanRole, trackedSince time.Time) (*domain.ClanAffiliation, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clan_affiliations (user_id, clan_id, role, tracked_since) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, clan_id) DO UPDATE SET role = excluded.role`,
		userID, clanID, string(role), trackedSince)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert affiliation user=%d clan=%d: %w", userID, clanID, err)
	}

	aff := &domain.ClanAffiliation{}
	var roleStr sql.NullString
	err = r.db.QueryRowContext(ctx, `
		SELECT id, user_id, clan_id, role, tracked_since FROM clan_affiliations
		WHERE user_id = ? AND clan_id = ?`, userID, clanID).
		Scan(&aff.ID, &aff.UserID, &aff.ClanID, &roleStr, &aff.TrackedSince)
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliation user=%d clan=%d: %w", userID, clanID, err)
	}
	if roleStr.Valid {
		role := domain.ClanRole(roleStr.String)
		aff.Role = &role
	}
	return aff, nil
}

func (r *SQLiteAffiliationRepository) GetByID(ctx context.Context, id int64) (*domain.ClanAffiliation, error) {
	aff := &domain.ClanAffiliation{}
	var roleStr sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, clan_id, role, tracked_since FROM clan_affiliations WHERE id = ?", id).
		Scan(&aff.ID, &aff.UserID, &aff.ClanID, &roleStr, &aff.TrackedSince)
	if err == sql.ErrNoRows {
		return nil, ErrAffiliationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliation %d: %w", id, err)
	}
	if roleStr.Valid {
		role := domain.ClanRole(roleStr.String)
		aff.Role = &role
	}
	return aff, nil
}

func (r *SQLiteAffiliationRepository) ListActiveByClan(ctx context.Context, clanID int64) ([]*domain.ClanAffiliation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, clan_id, role, tracked_since FROM clan_affiliations
		WHERE clan_id = ? AND role IS NOT NULL`, clanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliations for clan %d: %w", clanID, err)
	}
	defer rows.Close()

	var affiliations []*domain.ClanAffiliation
	for rows.Next() {
		aff := &domain.ClanAffiliation{}
		var roleStr sql.NullString
		if err := rows.Scan(&aff.ID, &aff.UserID, &aff.ClanID, &roleStr, &aff.TrackedSince); err != nil {
			return nil, fmt.Errorf("failed to scan affiliation: %w", err)
		}
		if roleStr.Valid {
			role := domain.ClanRole(roleStr.String)
			aff.Role = &role
		}
		affiliations = append(affiliations, aff)
	}
	return affiliations, rows.Err()
}

func (r *SQLiteAffiliationRepository) ClearRole(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE clan_affiliations SET role = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to clear role for affiliation %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrAffiliationNotFound)
}
