package journal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opRebuildStats         = "journal.rebuild_stats"
	opDailyStat            = "journal.daily_stat"
	reasonStatQueryFailed  = "stat_query_failed"
	reasonStatUpsertFailed = "stat_upsert_failed"
	reasonStatDeleteFailed = "stat_delete_failed"
	queryUserStatDate      = "user_id = ? AND stat_date = ?"
)

// statSource is the subset of entry columns the aggregate needs.
type statSource struct {
	ID               uint
	UserID           uint
	EntryDate        string
	MoodScore        int
	PositiveTagsJSON string `gorm:"column:positive_tags"`
	NegativeTagsJSON string `gorm:"column:negative_tags"`
	WorthIt          *bool
	WordCount        int
}

// computeDailyStat aggregates every entry dated on or before date.
func (s *Service) computeDailyStat(db *gorm.DB, userID uint, date string) (DailyStat, error) {
	var sources []statSource
	if err := db.Model(&Entry{}).
		Select("id", "user_id", "entry_date", "mood_score", "positive_tags", "negative_tags", "worth_it", "word_count").
		Where(queryUserDateUpTo, userID, date).
		Order(orderDateDesc).
		Find(&sources).Error; err != nil {
		return DailyStat{}, err
	}

	stat := DailyStat{UserID: userID, StatDate: date}
	dates := make([]string, 0, len(sources))
	moodTotal := 0
	for _, source := range sources {
		dates = append(dates, source.EntryDate)
		stat.EntryCount++
		moodTotal += source.MoodScore
		stat.TotalWords += source.WordCount
		if source.WorthIt != nil && *source.WorthIt {
			stat.WorthItDays++
		}
		entry := Entry{ID: source.ID, UserID: source.UserID, EntryDate: source.EntryDate}
		stat.PositiveTagCount += len(s.decodeEntryTags(entry, source.PositiveTagsJSON, PolarityPositive))
		stat.NegativeTagCount += len(s.decodeEntryTags(entry, source.NegativeTagsJSON, PolarityNegative))
	}
	if stat.EntryCount > 0 {
		stat.AvgMoodScore = math.Round(float64(moodTotal)/float64(stat.EntryCount)*100) / 100
	}
	stat.StreakDays = streakLength(dates)
	return stat, nil
}

func (s *Service) refreshDailyStat(tx *gorm.DB, operation string, userID uint, date string, now time.Time) (DailyStat, error) {
	stat, err := s.computeDailyStat(tx, userID, date)
	if err != nil {
		s.logError(operation, reasonStatQueryFailed, err,
			zap.Uint("user_id", userID),
			zap.String("stat_date", date))
		return DailyStat{}, failures.New(operation, reasonStatQueryFailed, err)
	}
	stat.UpdatedAt = now
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "stat_date"}},
		UpdateAll: true,
	}).Create(&stat).Error; err != nil {
		s.logError(operation, reasonStatUpsertFailed, err,
			zap.Uint("user_id", userID),
			zap.String("stat_date", date))
		return DailyStat{}, failures.New(operation, reasonStatUpsertFailed, err)
	}
	return stat, nil
}

// refreshStatsAfter recomputes the user's cached rows dated after date, which
// all include the entry dated date in their cumulative values.
func (s *Service) refreshStatsAfter(tx *gorm.DB, operation string, userID uint, date string, now time.Time) error {
	var later []string
	if err := tx.Model(&DailyStat{}).
		Where("user_id = ? AND stat_date > ?", userID, date).
		Order("stat_date ASC").
		Pluck("stat_date", &later).Error; err != nil {
		s.logError(operation, reasonStatQueryFailed, err,
			zap.Uint("user_id", userID),
			zap.String("stat_date", date))
		return failures.New(operation, reasonStatQueryFailed, err)
	}
	for _, statDate := range later {
		if _, err := s.refreshDailyStat(tx, operation, userID, statDate, now); err != nil {
			return err
		}
	}
	return nil
}

// DailyStat returns the cached aggregate row for the date.
func (s *Service) DailyStat(ctx context.Context, userID uint, date string) (DailyStat, bool, error) {
	if s.db == nil {
		s.logError(opDailyStat, reasonMissingDatabase, errMissingDatabase)
		return DailyStat{}, false, failures.New(opDailyStat, reasonMissingDatabase, errMissingDatabase)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return DailyStat{}, false, fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}
	var stat DailyStat
	err := s.db.WithContext(ctx).Where(queryUserStatDate, userID, date).Take(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DailyStat{}, false, nil
	}
	if err != nil {
		s.logError(opDailyStat, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return DailyStat{}, false, failures.New(opDailyStat, reasonQueryFailed, err)
	}
	return stat, true, nil
}

// RebuildStats discards the user's cached stat rows and recomputes one per entry date.
func (s *Service) RebuildStats(ctx context.Context, userID uint) (int, error) {
	if s.db == nil {
		s.logError(opRebuildStats, reasonMissingDatabase, errMissingDatabase)
		return 0, failures.New(opRebuildStats, reasonMissingDatabase, errMissingDatabase)
	}
	if userID == 0 {
		return 0, ErrInvalidUserID
	}
	now := s.clock().UTC()
	rebuilt := 0
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryUserID, userID).Delete(&DailyStat{}).Error; err != nil {
			s.logError(opRebuildStats, reasonStatDeleteFailed, err, zap.Uint("user_id", userID))
			return failures.New(opRebuildStats, reasonStatDeleteFailed, err)
		}
		var dates []string
		if err := tx.Model(&Entry{}).Where(queryUserID, userID).Order("entry_date ASC").Pluck(columnEntryDate, &dates).Error; err != nil {
			s.logError(opRebuildStats, reasonQueryFailed, err, zap.Uint("user_id", userID))
			return failures.New(opRebuildStats, reasonQueryFailed, err)
		}
		for _, date := range dates {
			if _, err := s.refreshDailyStat(tx, opRebuildStats, userID, date, now); err != nil {
				return err
			}
			rebuilt++
		}
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	s.loggerOrDefault().Info("daily stats rebuilt", zap.Uint("user_id", userID), zap.Int("rows", rebuilt))
	return rebuilt, nil
}

// RebuildAllStats rebuilds the stat cache for every user that has entries.
func (s *Service) RebuildAllStats(ctx context.Context) (int, error) {
	if s.db == nil {
		s.logError(opRebuildStats, reasonMissingDatabase, errMissingDatabase)
		return 0, failures.New(opRebuildStats, reasonMissingDatabase, errMissingDatabase)
	}
	var userIDs []uint
	if err := s.db.WithContext(ctx).Model(&Entry{}).Distinct("user_id").Pluck("user_id", &userIDs).Error; err != nil {
		s.logError(opRebuildStats, reasonQueryFailed, err)
		return 0, failures.New(opRebuildStats, reasonQueryFailed, err)
	}
	total := 0
	for _, userID := range userIDs {
		rebuilt, err := s.RebuildStats(ctx, userID)
		if err != nil {
			return total, err
		}
		total += rebuilt
	}
	return total, nil
}
