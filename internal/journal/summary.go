package journal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"go.uber.org/zap"
)

const (
	opYearSummary  = "journal.year_summary"
	opMonthSummary = "journal.month_summary"
)

// summarySource is the subset of entry columns the calendar summaries need.
type summarySource struct {
	ID               uint
	UserID           uint
	EntryDate        string
	PositiveTagsJSON string `gorm:"column:positive_tags"`
	NegativeTagsJSON string `gorm:"column:negative_tags"`
	WorthIt          *bool
}

// YearSummary returns tag and entry counts for all twelve months of the year.
// Months without entries are present with zero counts.
func (s *Service) YearSummary(ctx context.Context, userID uint, year int) (map[int]MonthCounts, error) {
	if s.db == nil {
		s.logError(opYearSummary, reasonMissingDatabase, errMissingDatabase)
		return nil, failures.New(opYearSummary, reasonMissingDatabase, errMissingDatabase)
	}
	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidDate, year)
	}

	sources, err := s.summarySources(ctx, userID, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		s.logError(opYearSummary, reasonQueryFailed, err, zap.Uint("user_id", userID), zap.Int("year", year))
		return nil, failures.New(opYearSummary, reasonQueryFailed, err)
	}

	summary := make(map[int]MonthCounts, 12)
	for month := 1; month <= 12; month++ {
		summary[month] = MonthCounts{}
	}
	for _, source := range sources {
		if len(source.EntryDate) != len(dateLayout) {
			continue
		}
		month, err := strconv.Atoi(source.EntryDate[5:7])
		if err != nil || month < 1 || month > 12 {
			continue
		}
		positive, negative := s.sourceTagCounts(source)
		counts := summary[month]
		counts.PositiveCount += positive
		counts.NegativeCount += negative
		counts.TotalCount++
		summary[month] = counts
	}
	return summary, nil
}

// MonthSummary returns per-day counts for the month. Only days with an entry
// appear as keys; callers treat missing days as having no data.
func (s *Service) MonthSummary(ctx context.Context, userID uint, year, month int) (map[int]DayCounts, error) {
	if s.db == nil {
		s.logError(opMonthSummary, reasonMissingDatabase, errMissingDatabase)
		return nil, failures.New(opMonthSummary, reasonMissingDatabase, errMissingDatabase)
	}
	first, err := CalendarDate(year, month, 1)
	if err != nil {
		return nil, err
	}

	sources, err := s.summarySources(ctx, userID, first, fmt.Sprintf("%04d-%02d-31", year, month))
	if err != nil {
		s.logError(opMonthSummary, reasonQueryFailed, err,
			zap.Uint("user_id", userID), zap.Int("year", year), zap.Int("month", month))
		return nil, failures.New(opMonthSummary, reasonQueryFailed, err)
	}

	summary := make(map[int]DayCounts, len(sources))
	for _, source := range sources {
		if len(source.EntryDate) != len(dateLayout) {
			continue
		}
		day, err := strconv.Atoi(source.EntryDate[8:10])
		if err != nil {
			continue
		}
		positive, negative := s.sourceTagCounts(source)
		summary[day] = DayCounts{
			PositiveCount: positive,
			NegativeCount: negative,
			Submitted:     true,
			WorthIt:       source.WorthIt,
		}
	}
	return summary, nil
}

func (s *Service) summarySources(ctx context.Context, userID uint, from, to string) ([]summarySource, error) {
	var sources []summarySource
	err := s.db.WithContext(ctx).
		Model(&Entry{}).
		Select("id", "user_id", "entry_date", "positive_tags", "negative_tags", "worth_it").
		Where(queryUserDateRange, userID, from, to).
		Order("entry_date ASC").
		Find(&sources).Error
	return sources, err
}

func (s *Service) sourceTagCounts(source summarySource) (int, int) {
	entry := Entry{ID: source.ID, UserID: source.UserID, EntryDate: source.EntryDate}
	positive := s.decodeEntryTags(entry, source.PositiveTagsJSON, PolarityPositive)
	negative := s.decodeEntryTags(entry, source.NegativeTagsJSON, PolarityNegative)
	return len(positive), len(negative)
}
