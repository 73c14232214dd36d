package domain

import (
	"time"
)

type ClanRole string

const (
	RoleMember   ClanRole = "member"
	RoleElder    ClanRole = "elder"
	RoleCoLeader ClanRole = "coleader"
	RoleLeader   ClanRole = "leader"
)

type ReminderTime string

const (
	ReminderUS  ReminderTime = "US"
	ReminderEU  ReminderTime = "EU"
	ReminderAll ReminderTime = "ALL"
)

type StrikeType string

const (
	StrikeTypeDecks  StrikeType = "decks"
	StrikeTypeMedals StrikeType = "medals"
)

// RaceState is derived from a race's flags and closed day boundaries.
// Transitions are monotonic: a race never re-opens once completed.
type RaceState int

const (
	RaceCreated RaceState = iota
	RaceTraining
	RaceBattleDay
	RaceCompleted
)

func (s RaceState) String() string {
	switch s {
	case RaceCreated:
		return "created"
	case RaceTraining:
		return "training"
	case RaceBattleDay:
		return "battle_day"
	case RaceCompleted:
		return "completed"
	}
	return "unknown"
}

type Season struct {
	ID        int64
	StartTime time.Time
	CreatedAt time.Time
}

type Clan struct {
	ID        int64
	Tag       string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID           int64
	Tag          string
	Name         string
	ExternalID   *int64
	Strikes      int
	ReminderTime ReminderTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ClanAffiliation is the membership edge between a user and a clan. A user
// keeps at most one affiliation per clan; Role is nil once they leave.
type ClanAffiliation struct {
	ID           int64
	UserID       int64
	ClanID       int64
	Role         *ClanRole
	TrackedSince time.Time
}

// PrimaryClanConfig is the per-clan policy for tracking, reminders, and
// strike assignment.
type PrimaryClanConfig struct {
	ClanID          int64
	TrackStats      bool
	SendReminders   bool
	AssignStrikes   bool
	StrikeType      StrikeType
	StrikeThreshold int
}

// RiverRace is one clan's participation in one week of one season.
// (ClanID, SeasonID, Week) is unique. Day boundaries are nullable until the
// corresponding day has been closed and must be monotonically non-decreasing.
type RiverRace struct {
	ID                int64
	ClanID            int64
	SeasonID          int64
	Week              int
	StartTime         time.Time
	LastCheck         time.Time
	BattleTime        bool
	ColosseumWeek     bool
	CompletedSaturday bool
	DayBoundaries     [7]*time.Time
}

// RiverRaceClan is a per-race snapshot of a clan's standing, for the race's
// own clan as well as its opponents. Distinct from Clan: this is a fact
// about one race, not an identity.
type RiverRaceClan struct {
	ID                int64
	RiverRaceID       int64
	Tag               string
	Name              string
	Medals            int
	TotalSeasonMedals int
	TotalDecksUsed    int
	DecksUsedToday    int
	BattleDays        int
	Completed         bool
}

// DaySlice holds the per-day participation facts for one user on one day of
// a race. Locked and OutsideBattles are independent facts: a day can in
// principle exhibit both.
type DaySlice struct {
	DecksUsed      int
	BoatDecksUsed  int
	Active         bool
	Locked         bool
	OutsideBattles int
}

// RiverRaceUserData is the central aggregate, keyed by
// (ClanAffiliationID, RiverRaceID). Cumulative counters cover the whole
// race; Days holds the per-day slices. Day slices for days beyond the
// race's current day stay zero until those days close.
type RiverRaceUserData struct {
	ID                int64
	ClanAffiliationID int64
	RiverRaceID       int64
	Medals            int
	RegularWins       int
	RegularLosses     int
	SpecialWins       int
	SpecialLosses     int
	DuelWins          int
	DuelLosses        int
	SeriesWins        int
	SeriesLosses      int
	BoatWins          int
	BoatLosses        int
	Days              [7]DaySlice
	StrikeIssued      bool
	LastCheck         time.Time
}

// DecksUsedOwn sums decks used on the given day for the tracked clan,
// excluding boat decks and outside battles.
func (d *RiverRaceUserData) DecksUsedOwn(day int) int {
	return d.Days[day-1].DecksUsed
}
