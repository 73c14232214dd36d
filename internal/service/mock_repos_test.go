package service

import (
	"context"
	"sync"
	"time"

	"riverrace-tracker/internal/domain"
	"riverrace-tracker/internal/events"
	"riverrace-tracker/internal/repository"
)

type mockRaceRepo struct {
	mu     sync.Mutex
	races  map[int64]*domain.RiverRace
	nextID int64
}

func newMockRaceRepo() *mockRaceRepo {
	return &mockRaceRepo{races: make(map[int64]*domain.RiverRace), nextID: 1}
}

func (m *mockRaceRepo) GetOrCreate(_ context.Context, clanID, seasonID int64, week int, startTime time.Time, colosseumWeek bool) (*domain.RiverRace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, race := range m.races {
		if race.ClanID == clanID && race.SeasonID == seasonID && race.Week == week {
			return race, nil
		}
	}
	race := &domain.RiverRace{
		ID:            m.nextID,
		ClanID:        clanID,
		SeasonID:      seasonID,
		Week:          week,
		StartTime:     startTime,
		ColosseumWeek: colosseumWeek,
	}
	m.races[race.ID] = race
	m.nextID++
	return race, nil
}

func (m *mockRaceRepo) GetByID(_ context.Context, id int64) (*domain.RiverRace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	race, ok := m.races[id]
	if !ok {
		return nil, repository.ErrRaceNotFound
	}
	return race, nil
}

func (m *mockRaceRepo) CommitDayBoundary(_ context.Context, raceID int64, day int, boundary time.Time, battleTime, completedSaturday bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	race, ok := m.races[raceID]
	if !ok {
		return repository.ErrRaceNotFound
	}
	b := boundary
	race.DayBoundaries[day-1] = &b
	race.BattleTime = battleTime
	race.CompletedSaturday = race.CompletedSaturday || completedSaturday
	return nil
}

func (m *mockRaceRepo) SetLastCheck(_ context.Context, raceID int64, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	race, ok := m.races[raceID]
	if !ok {
		return repository.ErrRaceNotFound
	}
	race.LastCheck = ts
	return nil
}

func (m *mockRaceRepo) ListBySeason(_ context.Context, seasonID int64) ([]*domain.RiverRace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var races []*domain.RiverRace
	for _, race := range m.races {
		if race.SeasonID == seasonID {
			races = append(races, race)
		}
	}
	return races, nil
}

func (m *mockRaceRepo) add(race *domain.RiverRace) *domain.RiverRace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if race.ID == 0 {
		race.ID = m.nextID
	}
	if race.ID >= m.nextID {
		m.nextID = race.ID + 1
	}
	m.races[race.ID] = race
	return race
}

type mockSeasonRepo struct {
	seasons map[int64]*domain.Season
	nextID  int64
}

func newMockSeasonRepo() *mockSeasonRepo {
	return &mockSeasonRepo{seasons: make(map[int64]*domain.Season), nextID: 1}
}

func (m *mockSeasonRepo) Create(_ context.Context, startTime time.Time) (*domain.Season, error) {
	season := &domain.Season{ID: m.nextID, StartTime: startTime}
	m.seasons[season.ID] = season
	m.nextID++
	return season, nil
}

func (m *mockSeasonRepo) Latest(_ context.Context) (*domain.Season, error) {
	var latest *domain.Season
	for _, season := range m.seasons {
		if latest == nil || season.ID > latest.ID {
			latest = season
		}
	}
	if latest == nil {
		return nil, repository.ErrSeasonNotFound
	}
	return latest, nil
}

func (m *mockSeasonRepo) GetByID(_ context.Context, id int64) (*domain.Season, error) {
	season, ok := m.seasons[id]
	if !ok {
		return nil, repository.ErrSeasonNotFound
	}
	return season, nil
}

type mockClanRepo struct {
	clans  map[int64]*domain.Clan
	nextID int64
}

func newMockClanRepo() *mockClanRepo {
	return &mockClanRepo{clans: make(map[int64]*domain.Clan), nextID: 1}
}

func (m *mockClanRepo) Upsert(_ context.Context, tag, name string) (*domain.Clan, error) {
	for _, clan := range m.clans {
		if clan.Tag == tag {
			clan.Name = name
			return clan, nil
		}
	}
	clan := &domain.Clan{ID: m.nextID, Tag: tag, Name: name}
	m.clans[clan.ID] = clan
	m.nextID++
	return clan, nil
}

func (m *mockClanRepo) GetByID(_ context.Context, id int64) (*domain.Clan, error) {
	clan, ok := m.clans[id]
	if !ok {
		return nil, repository.ErrClanNotFound
	}
	return clan, nil
}

func (m *mockClanRepo) GetByTag(_ context.Context, tag string) (*domain.Clan, error) {
	for _, clan := range m.clans {
		if clan.Tag == tag {
			return clan, nil
		}
	}
	return nil, repository.ErrClanNotFound
}

type mockUserRepo struct {
	users  map[int64]*domain.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *mockUserRepo) Upsert(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, existing := range m.users {
		if existing.Tag == user.Tag {
			existing.Name = user.Name
			return existing, nil
		}
	}
	stored := *user
	stored.ID = m.nextID
	if stored.ReminderTime == "" {
		stored.ReminderTime = domain.ReminderAll
	}
	m.users[stored.ID] = &stored
	m.nextID++
	return &stored, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByTag(_ context.Context, tag string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Tag == tag {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepo) AddStrikes(_ context.Context, id int64, delta int) (int, error) {
	user, ok := m.users[id]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	user.Strikes += delta
	if user.Strikes < 0 {
		user.Strikes = 0
	}
	return user.Strikes, nil
}

type mockAffiliationRepo struct {
	affiliations map[int64]*domain.ClanAffiliation
	nextID       int64
}

func newMockAffiliationRepo() *mockAffiliationRepo {
	return &mockAffiliationRepo{affiliations: make(map[int64]*domain.ClanAffiliation), nextID: 1}
}

func (m *mockAffiliationRepo) GetOrCreate(_ context.Context, userID, clanID int64, role domain.ClanRole, trackedSince time.Time) (*domain.ClanAffiliation, error) {
	for _, aff := range m.affiliations {
		if aff.UserID == userID && aff.ClanID == clanID {
			aff.Role = &role
			return aff, nil
		}
	}
	aff := &domain.ClanAffiliation{
		ID:           m.nextID,
		UserID:       userID,
		ClanID:       clanID,
		Role:         &role,
		TrackedSince: trackedSince,
	}
	m.affiliations[aff.ID] = aff
	m.nextID++
	return aff, nil
}

func (m *mockAffiliationRepo) GetByID(_ context.Context, id int64) (*domain.ClanAffiliation, error) {
	aff, ok := m.affiliations[id]
	if !ok {
		return nil, repository.ErrAffiliationNotFound
	}
	return aff, nil
}

func (m *mockAffiliationRepo) ListActiveByClan(_ context.Context, clanID int64) ([]*domain.ClanAffiliation, error) {
	var result []*domain.ClanAffiliation
	for _, aff := range m.affiliations {
		if aff.ClanID == clanID && aff.Role != nil {
			result = append(result, aff)
		}
	}
	return result, nil
}

func (m *mockAffiliationRepo) ClearRole(_ context.Context, id int64) error {
	aff, ok := m.affiliations[id]
	if !ok {
		return repository.ErrAffiliationNotFound
	}
	aff.Role = nil
	return nil
}

type mockPrimaryClanRepo struct {
	configs map[int64]*domain.PrimaryClanConfig
}

func newMockPrimaryClanRepo() *mockPrimaryClanRepo {
	return &mockPrimaryClanRepo{configs: make(map[int64]*domain.PrimaryClanConfig)}
}

func (m *mockPrimaryClanRepo) Get(_ context.Context, clanID int64) (*domain.PrimaryClanConfig, error) {
	cfg, ok := m.configs[clanID]
	if !ok {
		return nil, repository.ErrConfigNotFound
	}
	return cfg, nil
}

func (m *mockPrimaryClanRepo) List(_ context.Context) ([]*domain.PrimaryClanConfig, error) {
	var configs []*domain.PrimaryClanConfig
	for _, cfg := range m.configs {
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (m *mockPrimaryClanRepo) Upsert(_ context.Context, cfg *domain.PrimaryClanConfig) error {
	m.configs[cfg.ClanID] = cfg
	return nil
}

type mockRaceClanRepo struct {
	snapshots []domain.RiverRaceClan
	nextID    int64
}

func newMockRaceClanRepo() *mockRaceClanRepo {
	return &mockRaceClanRepo{nextID: 1}
}

func (m *mockRaceClanRepo) UpsertBatch(_ context.Context, snapshots []domain.RiverRaceClan) error {
	for _, snap := range snapshots {
		replaced := false
		for i := range m.snapshots {
			if m.snapshots[i].RiverRaceID == snap.RiverRaceID && m.snapshots[i].Tag == snap.Tag {
				snap.ID = m.snapshots[i].ID
				m.snapshots[i] = snap
				replaced = true
				break
			}
		}
		if !replaced {
			snap.ID = m.nextID
			m.nextID++
			m.snapshots = append(m.snapshots, snap)
		}
	}
	return nil
}

func (m *mockRaceClanRepo) ListByRace(_ context.Context, raceID int64) ([]domain.RiverRaceClan, error) {
	var result []domain.RiverRaceClan
	for _, snap := range m.snapshots {
		if snap.RiverRaceID == raceID {
			result = append(result, snap)
		}
	}
	return result, nil
}

func (m *mockRaceClanRepo) History(_ context.Context, tag string, beforeRaceID int64, window int) ([]domain.RiverRaceClan, error) {
	var result []domain.RiverRaceClan
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		snap := m.snapshots[i]
		if snap.Tag == tag && snap.RiverRaceID < beforeRaceID && snap.BattleDays > 0 {
			result = append(result, snap)
			if len(result) == window {
				break
			}
		}
	}
	return result, nil
}

type userDataKey struct {
	affiliationID int64
	raceID        int64
}

type mockUserDataRepo struct {
	mu     sync.Mutex
	rows   map[userDataKey]*domain.RiverRaceUserData
	nextID int64
}

func newMockUserDataRepo() *mockUserDataRepo {
	return &mockUserDataRepo{rows: make(map[userDataKey]*domain.RiverRaceUserData), nextID: 1}
}

func (m *mockUserDataRepo) EnsureRow(_ context.Context, affiliationID, raceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userDataKey{affiliationID, raceID}
	if _, ok := m.rows[key]; ok {
		return nil
	}
	m.rows[key] = &domain.RiverRaceUserData{
		ID:                m.nextID,
		ClanAffiliationID: affiliationID,
		RiverRaceID:       raceID,
	}
	m.nextID++
	return nil
}

func (m *mockUserDataRepo) Get(_ context.Context, affiliationID, raceID int64) (*domain.RiverRaceUserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userDataKey{affiliationID, raceID}]
	if !ok {
		return nil, repository.ErrUserDataNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *mockUserDataRepo) ListByRace(_ context.Context, raceID int64) ([]*domain.RiverRaceUserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.RiverRaceUserData
	for _, row := range m.rows {
		if row.RiverRaceID == raceID {
			copied := *row
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockUserDataRepo) Save(_ context.Context, data *domain.RiverRaceUserData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userDataKey{data.ClanAffiliationID, data.RiverRaceID}
	existing, ok := m.rows[key]
	if !ok {
		return repository.ErrUserDataNotFound
	}
	copied := *data
	copied.ID = existing.ID
	copied.Medals = existing.Medals
	copied.StrikeIssued = existing.StrikeIssued
	m.rows[key] = &copied
	return nil
}

func (m *mockUserDataRepo) SetMedals(_ context.Context, affiliationID, raceID int64, medals int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userDataKey{affiliationID, raceID}]
	if !ok {
		return repository.ErrUserDataNotFound
	}
	row.Medals = medals
	return nil
}

func (m *mockUserDataRepo) TryMarkStrikeIssued(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			if row.StrikeIssued {
				return false, nil
			}
			row.StrikeIssued = true
			return true, nil
		}
	}
	return false, repository.ErrUserDataNotFound
}

type battleKey struct {
	affiliationID int64
	raceID        int64
}

type mockBattleRepo struct {
	sets map[battleKey]*domain.BattleSet
}

func newMockBattleRepo() *mockBattleRepo {
	return &mockBattleRepo{sets: make(map[battleKey]*domain.BattleSet)}
}

func (m *mockBattleRepo) AppendBattleSet(_ context.Context, set domain.BattleSet) error {
	for _, battle := range set.PvpBattles {
		stored := m.setFor(battle.ClanAffiliationID, battle.RiverRaceID)
		if !containsTime(pvpTimes(stored.PvpBattles), battle.Time) {
			stored.PvpBattles = append(stored.PvpBattles, battle)
		}
	}
	for _, duel := range set.Duels {
		stored := m.setFor(duel.ClanAffiliationID, duel.RiverRaceID)
		if !containsTime(duelTimes(stored.Duels), duel.Time) {
			stored.Duels = append(stored.Duels, duel)
		}
	}
	for _, battle := range set.BoatBattles {
		stored := m.setFor(battle.ClanAffiliationID, battle.RiverRaceID)
		if !containsTime(boatTimes(stored.BoatBattles), battle.Time) {
			stored.BoatBattles = append(stored.BoatBattles, battle)
		}
	}
	return nil
}

func (m *mockBattleRepo) GetBattleSet(_ context.Context, affiliationID, raceID int64) (domain.BattleSet, error) {
	if stored, ok := m.sets[battleKey{affiliationID, raceID}]; ok {
		return *stored, nil
	}
	return domain.BattleSet{}, nil
}

func (m *mockBattleRepo) setFor(affiliationID, raceID int64) *domain.BattleSet {
	key := battleKey{affiliationID, raceID}
	if _, ok := m.sets[key]; !ok {
		m.sets[key] = &domain.BattleSet{}
	}
	return m.sets[key]
}

func pvpTimes(battles []domain.PvpBattle) []time.Time {
	times := make([]time.Time, len(battles))
	for i, b := range battles {
		times[i] = b.Time
	}
	return times
}

func duelTimes(duels []domain.Duel) []time.Time {
	times := make([]time.Time, len(duels))
	for i, d := range duels {
		times[i] = d.Time
	}
	return times
}

func boatTimes(battles []domain.BoatBattle) []time.Time {
	times := make([]time.Time, len(battles))
	for i, b := range battles {
		times[i] = b.Time
	}
	return times
}

func containsTime(times []time.Time, ts time.Time) bool {
	for _, t := range times {
		if t.Equal(ts) {
			return true
		}
	}
	return false
}

type mockEmitter struct {
	strikes     []events.StrikeAssigned
	predictions []events.PredictionReady
}

func (m *mockEmitter) EmitStrike(_ context.Context, event events.StrikeAssigned) {
	m.strikes = append(m.strikes, event)
}

func (m *mockEmitter) EmitPrediction(_ context.Context, event events.PredictionReady) {
	m.predictions = append(m.predictions, event)
}
