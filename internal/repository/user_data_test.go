package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// Save writes recomputed aggregates only. Observed columns written by
// other actors (medals from snapshots, the strike flag) must survive a
// Save built from an older read.
func TestSave_DoesNotTouchObservedColumns(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	repo := NewUserDataRepository(f.db, zerolog.Nop())

	if err := repo.EnsureRow(ctx, f.affiliation.ID, f.race.ID); err != nil {
		t.Fatal(err)
	}
	data, err := repo.Get(ctx, f.affiliation.ID, f.race.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Land after the read, before the Save.
	if err := repo.SetMedals(ctx, f.affiliation.ID, f.race.ID, 1800); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.TryMarkStrikeIssued(ctx, data.ID); err != nil {
		t.Fatal(err)
	}

	data.RegularWins = 5
	data.Days[3].DecksUsed = 4
	data.LastCheck = time.Date(2024, 9, 6, 19, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, data); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, f.affiliation.ID, f.race.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Medals != 1800 {
		t.Errorf("medals = %d after save, want 1800", got.Medals)
	}
	if !got.StrikeIssued {
		t.Error("strike flag reverted by save")
	}
	if got.RegularWins != 5 || got.Days[3].DecksUsed != 4 {
		t.Errorf("aggregates not written: wins=%d day4=%d", got.RegularWins, got.Days[3].DecksUsed)
	}
}

func TestSetMedals_MissingRow(t *testing.T) {
	f := setupRepos(t)

	err := NewUserDataRepository(f.db, zerolog.Nop()).SetMedals(context.Background(), f.affiliation.ID, f.race.ID, 100)
	if !errors.Is(err, ErrUserDataNotFound) {
		t.Errorf("got %v, want ErrUserDataNotFound", err)
	}
}

func TestTryMarkStrikeIssued_FlipsOnce(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	repo := NewUserDataRepository(f.db, zerolog.Nop())

	if err := repo.EnsureRow(ctx, f.affiliation.ID, f.race.ID); err != nil {
		t.Fatal(err)
	}
	data, err := repo.Get(ctx, f.affiliation.ID, f.race.ID)
	if err != nil {
		t.Fatal(err)
	}

	marked, err := repo.TryMarkStrikeIssued(ctx, data.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !marked {
		t.Error("first mark reported not-marked")
	}
	marked, err = repo.TryMarkStrikeIssued(ctx, data.ID)
	if err != nil {
		t.Fatal(err)
	}
	if marked {
		t.Error("second mark succeeded, want no-op")
	}
}
