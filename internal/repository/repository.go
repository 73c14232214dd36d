package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrSeasonNotFound      = errors.New("season not found")
	ErrClanNotFound        = errors.New("clan not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAffiliationNotFound = errors.New("clan affiliation not found")
	ErrRaceNotFound        = errors.New("river race not found")
	ErrUserDataNotFound    = errors.New("river race user data not found")
	ErrConfigNotFound      = errors.New("primary clan config not found")
)

func checkAffectedRows(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundErr
	}
	return nil
}
