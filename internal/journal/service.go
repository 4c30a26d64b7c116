package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew       = "journal.service.new"
	opSaveDailyEntry   = "journal.save_daily_entry"
	opListEntries      = "journal.list_entries"
	opEntryCount       = "journal.entry_count"
	opDayEntry         = "journal.day_entry"
	opHasEntryOn       = "journal.has_entry_on"
	opCurrentStreak    = "journal.current_streak"
	defaultPageSize    = 20
	maxPageSize        = 200
	queryUserID        = "user_id = ?"
	queryUserDate      = "user_id = ? AND entry_date = ?"
	queryUserDateUpTo  = "user_id = ? AND entry_date <= ?"
	queryUserDateRange = "user_id = ? AND entry_date >= ? AND entry_date <= ?"
	orderEntriesDesc   = "entry_date DESC, created_at DESC, id DESC"
	orderDateDesc      = "entry_date DESC"
	columnEntryDate    = "entry_date"

	reasonMissingDatabase  = "missing_database"
	reasonUserLookupFailed = "user_lookup_failed"
	reasonEntryLookup      = "entry_lookup_failed"
	reasonEntryInsert      = "entry_insert_failed"
	reasonEntryUpdate      = "entry_update_failed"
	reasonTagEncodeFailed  = "tag_encode_failed"
	reasonQueryFailed      = "query_failed"
)

// ServiceConfig describes the dependencies of the journal service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	Location   *time.Location
	IDProvider IDProvider
	Logger     *zap.Logger
	Events     *Dispatcher
}

// IDProvider issues identifiers for ai_interactions rows.
type IDProvider interface {
	NewID() (string, error)
}

// Service stores daily entries and answers calendar queries over them.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	location   *time.Location
	idProvider IDProvider
	logger     *zap.Logger
	events     *Dispatcher
}

// NewService constructs the journal service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, failures.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, failures.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		location:   location,
		idProvider: cfg.IDProvider,
		logger:     logger,
		events:     cfg.Events,
	}, nil
}

// OwnedModels lists the journal tables whose rows belong to a single user.
func OwnedModels() []any {
	return []any{&Interaction{}, &DailyStat{}, &Entry{}}
}

// Today returns the current calendar date in the service's time zone.
func (s *Service) Today() string {
	return FormatDate(s.clock().In(s.location))
}

// SaveDailyEntry upserts today's entry for the user and refreshes the day's
// stat row, plus any later stat rows, in the same transaction.
func (s *Service) SaveDailyEntry(ctx context.Context, request SaveEntryRequest) (SavedEntry, error) {
	if s.db == nil {
		s.logError(opSaveDailyEntry, reasonMissingDatabase, errMissingDatabase)
		return SavedEntry{}, failures.New(opSaveDailyEntry, reasonMissingDatabase, errMissingDatabase)
	}
	if request.UserID == 0 {
		return SavedEntry{}, ErrInvalidUserID
	}
	positiveTags, err := normalizeTags(request.PositiveTags, PolarityPositive)
	if err != nil {
		return SavedEntry{}, err
	}
	negativeTags, err := normalizeTags(request.NegativeTags, PolarityNegative)
	if err != nil {
		return SavedEntry{}, err
	}
	reflection := strings.TrimSpace(request.Reflection)
	if reflection == "" && len(positiveTags) == 0 && len(negativeTags) == 0 {
		return SavedEntry{}, ErrEmptyEntry
	}

	positiveJSON, err := encodeTags(positiveTags)
	if err != nil {
		s.logError(opSaveDailyEntry, reasonTagEncodeFailed, err, zap.Uint("user_id", request.UserID))
		return SavedEntry{}, failures.New(opSaveDailyEntry, reasonTagEncodeFailed, err)
	}
	negativeJSON, err := encodeTags(negativeTags)
	if err != nil {
		s.logError(opSaveDailyEntry, reasonTagEncodeFailed, err, zap.Uint("user_id", request.UserID))
		return SavedEntry{}, failures.New(opSaveDailyEntry, reasonTagEncodeFailed, err)
	}

	now := s.clock()
	entryDate := FormatDate(now.In(s.location))
	derived := Derive(reflection, len(positiveTags), len(negativeTags), request.WorthIt)
	var worthIt *bool
	if request.WorthIt != nil {
		value := *request.WorthIt
		worthIt = &value
	}

	saved := SavedEntry{Date: entryDate, MoodScore: derived.MoodScore, Sentiment: derived.Sentiment}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUser(tx, opSaveDailyEntry, request.UserID); err != nil {
			return err
		}

		var entry Entry
		err := tx.Where(queryUserDate, request.UserID, entryDate).Take(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = Entry{
				UserID:    request.UserID,
				EntryDate: entryDate,
				CreatedAt: now.UTC(),
			}
			saved.Created = true
		case err != nil:
			s.logError(opSaveDailyEntry, reasonEntryLookup, err,
				zap.Uint("user_id", request.UserID),
				zap.String("entry_date", entryDate))
			return failures.New(opSaveDailyEntry, reasonEntryLookup, err)
		}

		entry.Reflection = reflection
		entry.PositiveTagsJSON = positiveJSON
		entry.NegativeTagsJSON = negativeJSON
		entry.WorthIt = worthIt
		entry.Sentiment = derived.Sentiment
		entry.MoodScore = derived.MoodScore
		entry.AISummary = derived.Summary
		entry.WordCount = derived.WordCount
		entry.UpdatedAt = now.UTC()

		if saved.Created {
			if err := tx.Create(&entry).Error; err != nil {
				s.logError(opSaveDailyEntry, reasonEntryInsert, err,
					zap.Uint("user_id", request.UserID),
					zap.String("entry_date", entryDate))
				return failures.New(opSaveDailyEntry, reasonEntryInsert, err)
			}
		} else if err := tx.Save(&entry).Error; err != nil {
			s.logError(opSaveDailyEntry, reasonEntryUpdate, err,
				zap.Uint("user_id", request.UserID),
				zap.Uint("entry_id", entry.ID))
			return failures.New(opSaveDailyEntry, reasonEntryUpdate, err)
		}
		saved.EntryID = entry.ID

		stat, err := s.refreshDailyStat(tx, opSaveDailyEntry, request.UserID, entryDate, now.UTC())
		if err != nil {
			return err
		}
		saved.Stat = stat
		return s.refreshStatsAfter(tx, opSaveDailyEntry, request.UserID, entryDate, now.UTC())
	})
	if txErr != nil {
		return SavedEntry{}, txErr
	}

	s.logger.Debug("daily entry saved",
		zap.Uint("user_id", request.UserID),
		zap.Uint("entry_id", saved.EntryID),
		zap.String("entry_date", entryDate),
		zap.Bool("created", saved.Created))

	if s.events != nil {
		s.events.Publish(savedEntryEvent(request.UserID, saved, now.UTC()))
	}
	return saved, nil
}

// ListEntries returns the user's entries newest first.
func (s *Service) ListEntries(ctx context.Context, userID uint, limit, offset int) ([]DailyEntry, error) {
	if s.db == nil {
		s.logError(opListEntries, reasonMissingDatabase, errMissingDatabase)
		return nil, failures.New(opListEntries, reasonMissingDatabase, errMissingDatabase)
	}
	if userID == 0 {
		return nil, ErrInvalidUserID
	}
	if limit < 0 || offset < 0 {
		return nil, ErrInvalidPagination
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where(queryUserID, userID).
		Order(orderEntriesDesc).
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		s.logError(opListEntries, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return nil, failures.New(opListEntries, reasonQueryFailed, err)
	}

	result := make([]DailyEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, s.toDailyEntry(entry))
	}
	return result, nil
}

// EntryCount returns the number of entries ever saved by the user.
func (s *Service) EntryCount(ctx context.Context, userID uint) (int64, error) {
	if s.db == nil {
		s.logError(opEntryCount, reasonMissingDatabase, errMissingDatabase)
		return 0, failures.New(opEntryCount, reasonMissingDatabase, errMissingDatabase)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).Where(queryUserID, userID).Count(&count).Error; err != nil {
		s.logError(opEntryCount, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return 0, failures.New(opEntryCount, reasonQueryFailed, err)
	}
	return count, nil
}

// DayEntry returns the entry for the calendar day, or EmptyDay when none exists.
func (s *Service) DayEntry(ctx context.Context, userID uint, year, month, day int) (DailyEntry, error) {
	if s.db == nil {
		s.logError(opDayEntry, reasonMissingDatabase, errMissingDatabase)
		return DailyEntry{}, failures.New(opDayEntry, reasonMissingDatabase, errMissingDatabase)
	}
	date, err := CalendarDate(year, month, day)
	if err != nil {
		return DailyEntry{}, err
	}

	var entry Entry
	err = s.db.WithContext(ctx).Where(queryUserDate, userID, date).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return EmptyDay(userID, date), nil
	}
	if err != nil {
		s.logError(opDayEntry, reasonQueryFailed, err,
			zap.Uint("user_id", userID),
			zap.String("entry_date", date))
		return DailyEntry{}, failures.New(opDayEntry, reasonQueryFailed, err)
	}
	return s.toDailyEntry(entry), nil
}

// HasEntryOn reports whether the user saved an entry for the date.
func (s *Service) HasEntryOn(ctx context.Context, userID uint, date string) (bool, error) {
	if s.db == nil {
		s.logError(opHasEntryOn, reasonMissingDatabase, errMissingDatabase)
		return false, failures.New(opHasEntryOn, reasonMissingDatabase, errMissingDatabase)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return false, fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).Where(queryUserDate, userID, date).Count(&count).Error; err != nil {
		s.logError(opHasEntryOn, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return false, failures.New(opHasEntryOn, reasonQueryFailed, err)
	}
	return count > 0, nil
}

// TodayStatus reports whether today's entry exists and the current streak.
func (s *Service) TodayStatus(ctx context.Context, userID uint) (TodayStatus, error) {
	today := s.Today()
	submitted, err := s.HasEntryOn(ctx, userID, today)
	if err != nil {
		return TodayStatus{}, err
	}
	streak, err := s.CurrentStreak(ctx, userID)
	if err != nil {
		return TodayStatus{}, err
	}
	return TodayStatus{Date: today, Submitted: submitted, StreakDays: streak}, nil
}

// CurrentStreak returns the streak as of today: consecutive days ending today,
// or ending at the most recent entry when today has none.
func (s *Service) CurrentStreak(ctx context.Context, userID uint) (int, error) {
	if s.db == nil {
		s.logError(opCurrentStreak, reasonMissingDatabase, errMissingDatabase)
		return 0, failures.New(opCurrentStreak, reasonMissingDatabase, errMissingDatabase)
	}
	dates, err := s.entryDatesUpTo(s.db.WithContext(ctx), userID, s.Today())
	if err != nil {
		s.logError(opCurrentStreak, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return 0, failures.New(opCurrentStreak, reasonQueryFailed, err)
	}
	return streakLength(dates), nil
}

func (s *Service) entryDatesUpTo(db *gorm.DB, userID uint, date string) ([]string, error) {
	var dates []string
	err := db.Model(&Entry{}).
		Where(queryUserDateUpTo, userID, date).
		Order(orderDateDesc).
		Pluck(columnEntryDate, &dates).Error
	return dates, err
}

func (s *Service) ensureUser(tx *gorm.DB, operation string, userID uint) error {
	var count int64
	if err := tx.Model(&users.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		s.logError(operation, reasonUserLookupFailed, err, zap.Uint("user_id", userID))
		return failures.New(operation, reasonUserLookupFailed, err)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) toDailyEntry(entry Entry) DailyEntry {
	return DailyEntry{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Date:         entry.EntryDate,
		Submitted:    true,
		Reflection:   entry.Reflection,
		PositiveTags: s.decodeEntryTags(entry, entry.PositiveTagsJSON, PolarityPositive),
		NegativeTags: s.decodeEntryTags(entry, entry.NegativeTagsJSON, PolarityNegative),
		WorthIt:      entry.WorthIt,
		Sentiment:    entry.Sentiment,
		MoodScore:    entry.MoodScore,
		AISummary:    entry.AISummary,
		WordCount:    entry.WordCount,
		CreatedAt:    entry.CreatedAt,
		UpdatedAt:    entry.UpdatedAt,
	}
}

func (s *Service) decodeEntryTags(entry Entry, raw string, polarity Polarity) []Tag {
	tags, err := decodeTags(raw, polarity)
	if err != nil {
		s.loggerOrDefault().Warn("stored tag list is malformed",
			zap.Uint("user_id", entry.UserID),
			zap.Uint("entry_id", entry.ID),
			zap.String("entry_date", entry.EntryDate),
			zap.String("polarity", string(polarity)),
			zap.Error(err))
	}
	return tags
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("journal service error", attrs...)
}
