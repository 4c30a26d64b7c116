package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) advanceDays(days int) {
	c.now = c.now.AddDate(0, 0, days)
}

type journalHarness struct {
	journal *Service
	users   *users.Service
	db      *gorm.DB
	clock   *testClock
	logs    *observer.ObservedLogs
	events  *Dispatcher
}

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return time.Date(2026, 1, 1, 0, 0, p.next, 0, time.UTC).Format("20060102150405"), nil
}

func newJournalHarness(t *testing.T) *journalHarness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "journal.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&users.User{}, &Entry{}, &DailyStat{}, &Interaction{}))

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	clock := &testClock{now: time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)}
	events := NewDispatcher()

	journalService, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		Location:   time.UTC,
		IDProvider: &sequenceIDProvider{},
		Logger:     logger,
		Events:     events,
	})
	require.NoError(t, err)

	userService, err := users.NewService(users.ServiceConfig{
		Database:     db,
		Clock:        clock.Now,
		Logger:       logger,
		PasswordCost: bcrypt.MinCost,
		OwnedModels:  OwnedModels(),
	})
	require.NoError(t, err)

	return &journalHarness{
		journal: journalService,
		users:   userService,
		db:      db,
		clock:   clock,
		logs:    logs,
		events:  events,
	}
}

func (h *journalHarness) createUser(t *testing.T, email string) uint {
	t.Helper()
	userID, err := h.users.CreateUser(context.Background(), email, "reflect123", "Viajero Zen", "")
	require.NoError(t, err)
	return userID
}

func (h *journalHarness) save(t *testing.T, userID uint, reflection string, positive, negative []Tag, worthIt *bool) SavedEntry {
	t.Helper()
	saved, err := h.journal.SaveDailyEntry(context.Background(), SaveEntryRequest{
		UserID:       userID,
		Reflection:   reflection,
		PositiveTags: positive,
		NegativeTags: negative,
		WorthIt:      worthIt,
	})
	require.NoError(t, err)
	return saved
}

func TestExampleScenarioMonthSummary(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()

	userID := harness.createUser(t, "zen@reflect.app")
	profile, err := harness.users.Authenticate(ctx, "zen@reflect.app", "reflect123")
	require.NoError(t, err)
	require.Equal(t, userID, profile.ID)
	require.Equal(t, "Viajero Zen", profile.Name)

	saved := harness.save(t, userID, "Buen día", []Tag{{Name: "Café", Context: "rico", Emoji: "☕"}}, nil, boolPtr(true))
	require.NotZero(t, saved.EntryID)
	require.True(t, saved.Created)
	require.Equal(t, "2026-03-14", saved.Date)

	summary, err := harness.journal.MonthSummary(ctx, userID, 2026, 3)
	require.NoError(t, err)
	day, ok := summary[14]
	require.True(t, ok)
	require.Equal(t, 1, day.PositiveCount)
	require.Equal(t, 0, day.NegativeCount)
	require.True(t, day.Submitted)
	require.NotNil(t, day.WorthIt)
	require.True(t, *day.WorthIt)
}

func TestSaveDailyEntryUpsertsByDay(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	first := harness.save(t, userID, "tired day", nil, []Tag{{Name: "Tráfico"}}, boolPtr(false))
	createdAt := harness.clock.now

	harness.clock.now = harness.clock.now.Add(2 * time.Hour)
	second := harness.save(t, userID, "a happy evening after all", []Tag{{Name: "Cena"}}, nil, boolPtr(true))

	require.True(t, first.Created)
	require.False(t, second.Created)
	require.Equal(t, first.EntryID, second.EntryID)

	count, err := harness.journal.EntryCount(ctx, userID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	entry, err := harness.journal.DayEntry(ctx, userID, 2026, 3, 14)
	require.NoError(t, err)
	require.Equal(t, "a happy evening after all", entry.Reflection)
	require.Len(t, entry.PositiveTags, 1)
	require.Empty(t, entry.NegativeTags)
	require.Equal(t, SentimentPositive, entry.Sentiment)
	require.Equal(t, 5, entry.WordCount)
	require.True(t, entry.CreatedAt.Equal(createdAt))
	require.True(t, entry.UpdatedAt.After(entry.CreatedAt))
}

func TestTagListsRoundTripInOrder(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	positive := []Tag{
		{Name: "Café", Context: "rico", Emoji: "☕"},
		{Name: "Paseo", Context: "parque", Emoji: "🌳"},
	}
	negative := []Tag{{Name: "Lluvia", Context: "sin paraguas", Emoji: "🌧️"}}
	harness.save(t, userID, "", positive, negative, nil)

	entry, err := harness.journal.DayEntry(ctx, userID, 2026, 3, 14)
	require.NoError(t, err)
	require.True(t, entry.Submitted)
	require.Nil(t, entry.WorthIt)
	require.Equal(t, []Tag{
		{Name: "Café", Context: "rico", Emoji: "☕", Polarity: PolarityPositive},
		{Name: "Paseo", Context: "parque", Emoji: "🌳", Polarity: PolarityPositive},
	}, entry.PositiveTags)
	require.Equal(t, []Tag{
		{Name: "Lluvia", Context: "sin paraguas", Emoji: "🌧️", Polarity: PolarityNegative},
	}, entry.NegativeTags)
}

func TestYearSummaryAlwaysHasTwelveMonths(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	empty, err := harness.journal.YearSummary(ctx, userID, 2026)
	require.NoError(t, err)
	require.Len(t, empty, 12)
	for month := 1; month <= 12; month++ {
		require.Equal(t, MonthCounts{}, empty[month])
	}

	harness.save(t, userID, "", []Tag{{Name: "Café"}, {Name: "Sol"}}, nil, nil)
	harness.clock.advanceDays(1)
	harness.save(t, userID, "", nil, []Tag{{Name: "Lluvia"}}, nil)
	harness.clock.now = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	harness.save(t, userID, "calm", nil, nil, nil)

	summary, err := harness.journal.YearSummary(ctx, userID, 2026)
	require.NoError(t, err)
	require.Len(t, summary, 12)
	require.Equal(t, MonthCounts{PositiveCount: 2, NegativeCount: 1, TotalCount: 2}, summary[3])
	require.Equal(t, MonthCounts{TotalCount: 1}, summary[5])
	require.Equal(t, MonthCounts{}, summary[4])

	other, err := harness.journal.YearSummary(ctx, userID, 2025)
	require.NoError(t, err)
	require.Len(t, other, 12)
	require.Equal(t, MonthCounts{}, other[3])
}

func TestMonthSummaryOnlyListsDaysWithEntries(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	empty, err := harness.journal.MonthSummary(ctx, userID, 2026, 3)
	require.NoError(t, err)
	require.Empty(t, empty)

	harness.clock.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	harness.save(t, userID, "ok", nil, nil, nil)
	harness.clock.now = time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)
	harness.save(t, userID, "ok", nil, []Tag{{Name: "Prisa"}}, boolPtr(false))
	harness.clock.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	harness.save(t, userID, "ok", nil, nil, nil)

	summary, err := harness.journal.MonthSummary(ctx, userID, 2026, 3)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	require.Contains(t, summary, 2)
	require.Contains(t, summary, 31)
	require.NotContains(t, summary, 15)
	require.Nil(t, summary[2].WorthIt)
	require.Equal(t, 1, summary[31].NegativeCount)
	require.False(t, *summary[31].WorthIt)

	_, err = harness.journal.MonthSummary(ctx, userID, 2026, 13)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestDayEntryReturnsEmptyDefault(t *testing.T) {
	harness := newJournalHarness(t)
	userID := harness.createUser(t, "zen@reflect.app")

	entry, err := harness.journal.DayEntry(context.Background(), userID, 2026, 1, 5)
	require.NoError(t, err)
	require.Equal(t, EmptyDay(userID, "2026-01-05"), entry)
	require.False(t, entry.Submitted)
	require.NotNil(t, entry.PositiveTags)
	require.Empty(t, entry.PositiveTags)
	require.Empty(t, entry.Reflection)
	require.Nil(t, entry.WorthIt)

	_, err = harness.journal.DayEntry(context.Background(), userID, 2026, 2, 30)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestMalformedTagBlobDegradesToEmptyList(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")
	saved := harness.save(t, userID, "", []Tag{{Name: "Café"}}, []Tag{{Name: "Lluvia"}}, nil)

	require.NoError(t, harness.db.Model(&Entry{}).Where("id = ?", saved.EntryID).Update("positive_tags", "{broken").Error)

	entry, err := harness.journal.DayEntry(ctx, userID, 2026, 3, 14)
	require.NoError(t, err)
	require.NotNil(t, entry.PositiveTags)
	require.Empty(t, entry.PositiveTags)
	require.Len(t, entry.NegativeTags, 1)

	warnings := harness.logs.FilterMessage("stored tag list is malformed").All()
	require.NotEmpty(t, warnings)
	require.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	require.Equal(t, string(PolarityPositive), warnings[0].ContextMap()["polarity"])

	summary, err := harness.journal.MonthSummary(ctx, userID, 2026, 3)
	require.NoError(t, err)
	require.Equal(t, 0, summary[14].PositiveCount)
	require.Equal(t, 1, summary[14].NegativeCount)
}

func TestStreakCountsConsecutiveDays(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	harness.clock.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	harness.save(t, userID, "one", nil, nil, nil)
	harness.clock.now = time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	harness.save(t, userID, "two", nil, nil, nil)
	harness.clock.advanceDays(1)
	harness.save(t, userID, "three", nil, nil, nil)
	harness.clock.advanceDays(1)
	saved := harness.save(t, userID, "four", nil, nil, nil)

	require.Equal(t, 3, saved.Stat.StreakDays)
	require.Equal(t, 4, saved.Stat.EntryCount)

	streak, err := harness.journal.CurrentStreak(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 3, streak)

	stat, found, err := harness.journal.DailyStat(ctx, userID, "2026-03-12")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, stat.StreakDays)
	require.Equal(t, 2, stat.EntryCount)

	harness.clock.advanceDays(1)
	status, err := harness.journal.TodayStatus(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "2026-03-15", status.Date)
	require.False(t, status.Submitted)
	require.Equal(t, 3, status.StreakDays)
}

func TestRebuildStatsReproducesCache(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	harness.save(t, userID, "happy and calm", []Tag{{Name: "Sol"}}, nil, boolPtr(true))
	harness.clock.advanceDays(1)
	harness.save(t, userID, "tired", nil, []Tag{{Name: "Lluvia"}, {Name: "Prisa"}}, boolPtr(false))
	harness.clock.advanceDays(2)
	harness.save(t, userID, "fine", nil, nil, nil)

	var cached []DailyStat
	require.NoError(t, harness.db.Where("user_id = ?", userID).Order("stat_date ASC").Find(&cached).Error)
	require.Len(t, cached, 3)

	rebuilt, err := harness.journal.RebuildStats(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 3, rebuilt)

	var fresh []DailyStat
	require.NoError(t, harness.db.Where("user_id = ?", userID).Order("stat_date ASC").Find(&fresh).Error)
	require.Len(t, fresh, len(cached))
	for index := range cached {
		cached[index].UpdatedAt = time.Time{}
		fresh[index].UpdatedAt = time.Time{}
	}
	require.Equal(t, cached, fresh)

	total, err := harness.journal.RebuildAllStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

func TestSaveForEarlierDateRefreshesLaterStats(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	harness.clock.advanceDays(1)
	harness.save(t, userID, "bright morning", []Tag{{Name: "Sol"}}, nil, boolPtr(true))
	harness.clock.advanceDays(-1)
	harness.save(t, userID, "quiet evening", nil, []Tag{{Name: "Prisa"}}, nil)

	cached, found, err := harness.journal.DailyStat(ctx, userID, "2026-03-15")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, cached.EntryCount)
	require.Equal(t, 2, cached.StreakDays)

	_, err = harness.journal.RebuildStats(ctx, userID)
	require.NoError(t, err)
	rebuilt, found, err := harness.journal.DailyStat(ctx, userID, "2026-03-15")
	require.NoError(t, err)
	require.True(t, found)

	cached.UpdatedAt = time.Time{}
	rebuilt.UpdatedAt = time.Time{}
	require.Equal(t, rebuilt, cached)
}

func TestSaveDailyEntryRollsBackWhenStatUpsertFails(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")
	require.NoError(t, harness.db.Migrator().DropTable(&DailyStat{}))

	_, err := harness.journal.SaveDailyEntry(ctx, SaveEntryRequest{UserID: userID, Reflection: "calm"})
	require.Error(t, err)
	require.Equal(t, "journal.save_daily_entry.stat_upsert_failed", failures.CodeOf(err))

	count, err := harness.journal.EntryCount(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDeleteUserRemovesJournalRows(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")
	otherID := harness.createUser(t, "other@reflect.app")

	harness.save(t, userID, "good", []Tag{{Name: "Café"}}, nil, nil)
	harness.save(t, otherID, "good", []Tag{{Name: "Té"}}, nil, nil)
	_, err := harness.journal.RecordInteraction(ctx, InteractionRecord{UserID: userID, Kind: "daily_insight", Prompt: "p", Response: "r"})
	require.NoError(t, err)

	require.NoError(t, harness.users.DeleteUser(ctx, userID))

	count, err := harness.journal.EntryCount(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, count)
	entries, err := harness.journal.ListEntries(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Empty(t, entries)

	var stats int64
	require.NoError(t, harness.db.Model(&DailyStat{}).Where("user_id = ?", userID).Count(&stats).Error)
	require.Zero(t, stats)
	interactions, err := harness.journal.ListInteractions(ctx, userID, 0)
	require.NoError(t, err)
	require.Empty(t, interactions)

	otherCount, err := harness.journal.EntryCount(ctx, otherID)
	require.NoError(t, err)
	require.EqualValues(t, 1, otherCount)
}

func TestSaveDailyEntryRejectsInvalidRequests(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	_, err := harness.journal.SaveDailyEntry(ctx, SaveEntryRequest{UserID: userID, Reflection: "   "})
	require.ErrorIs(t, err, ErrEmptyEntry)

	_, err = harness.journal.SaveDailyEntry(ctx, SaveEntryRequest{UserID: 0, Reflection: "hola"})
	require.ErrorIs(t, err, ErrInvalidUserID)

	_, err = harness.journal.SaveDailyEntry(ctx, SaveEntryRequest{UserID: 999, Reflection: "hola"})
	require.ErrorIs(t, err, ErrUserNotFound)
	require.False(t, failures.IsStorage(err))

	_, err = harness.journal.SaveDailyEntry(ctx, SaveEntryRequest{
		UserID:       userID,
		PositiveTags: []Tag{{Name: "Lluvia", Polarity: PolarityNegative}},
	})
	require.ErrorIs(t, err, ErrInvalidTag)

	count, err := harness.journal.EntryCount(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestListEntriesNewestFirst(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	for day := 0; day < 3; day++ {
		harness.save(t, userID, "entry", nil, nil, nil)
		harness.clock.advanceDays(1)
	}

	entries, err := harness.journal.ListEntries(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "2026-03-16", entries[0].Date)
	require.Equal(t, "2026-03-14", entries[2].Date)

	page, err := harness.journal.ListEntries(ctx, userID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "2026-03-15", page[0].Date)

	_, err = harness.journal.ListEntries(ctx, userID, -1, 0)
	require.ErrorIs(t, err, ErrInvalidPagination)
}

func TestSaveDailyEntryPublishesEvent(t *testing.T) {
	harness := newJournalHarness(t)
	userID := harness.createUser(t, "zen@reflect.app")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscription := harness.events.Subscribe(ctx, userID, 0)
	defer subscription.Close()

	saved := harness.save(t, userID, "good", nil, nil, nil)

	select {
	case event := <-subscription.Events():
		require.Equal(t, EventEntrySaved, event.EventType)
		require.Equal(t, saved.EntryID, event.EntryID)
		require.Equal(t, "2026-03-14", event.Date)
		require.True(t, event.Created)
		require.Equal(t, saved.MoodScore, event.MoodScore)
		require.Equal(t, 1, event.StreakDays)
	case <-time.After(time.Second):
		t.Fatal("expected entry-saved event")
	}
}

func TestInteractionsAreListedNewestFirst(t *testing.T) {
	harness := newJournalHarness(t)
	ctx := context.Background()
	userID := harness.createUser(t, "zen@reflect.app")

	first, err := harness.journal.RecordInteraction(ctx, InteractionRecord{
		UserID: userID, EntryDate: "2026-03-14", Kind: "daily_insight", Prompt: "first", Response: "one", Model: "gpt-4o-mini",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	harness.clock.now = harness.clock.now.Add(time.Minute)
	second, err := harness.journal.RecordInteraction(ctx, InteractionRecord{
		UserID: userID, EntryDate: "2026-03-14", Kind: "daily_insight", Prompt: "second", Response: "two",
	})
	require.NoError(t, err)

	interactions, err := harness.journal.ListInteractions(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, interactions, 2)
	require.Equal(t, second.ID, interactions[0].ID)
	require.Equal(t, first.ID, interactions[1].ID)
	require.Equal(t, "gpt-4o-mini", interactions[1].Model)

	_, err = harness.journal.RecordInteraction(ctx, InteractionRecord{UserID: userID, Kind: "", Prompt: "x"})
	require.ErrorIs(t, err, ErrInvalidInteraction)
}
