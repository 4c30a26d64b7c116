package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Polarity marks a tag as a positive or negative moment.
type Polarity string

const (
	// PolarityPositive marks moments that lifted the day.
	PolarityPositive Polarity = "positive"
	// PolarityNegative marks moments that weighed on the day.
	PolarityNegative Polarity = "negative"
)

const (
	dateLayout       = "2006-01-02"
	maxTagNameLength = 64
	maxTagsPerList   = 50
)

var (
	// ErrInvalidUserID indicates a zero user identifier.
	ErrInvalidUserID = errors.New("journal: invalid user id")
	// ErrUserNotFound indicates that the owning user does not exist.
	ErrUserNotFound = errors.New("journal: user not found")
	// ErrEmptyEntry indicates a save with no reflection text and no tags.
	ErrEmptyEntry = errors.New("journal: entry has no content")
	// ErrInvalidTag indicates a tag without a name or with the wrong polarity.
	ErrInvalidTag = errors.New("journal: invalid tag")
	// ErrInvalidDate indicates a year/month/day combination that is not a calendar date.
	ErrInvalidDate = errors.New("journal: invalid date")
	// ErrInvalidPagination indicates a negative limit or offset.
	ErrInvalidPagination = errors.New("journal: invalid pagination")
)

// Tag is a named moment attached to a daily entry.
type Tag struct {
	Name     string   `json:"name"`
	Context  string   `json:"context"`
	Emoji    string   `json:"emoji"`
	Polarity Polarity `json:"polarity"`
}

// NewTag validates the fields and returns a Tag.
func NewTag(name, context, emoji string, polarity Polarity) (Tag, error) {
	tag := Tag{
		Name:     strings.TrimSpace(name),
		Context:  strings.TrimSpace(context),
		Emoji:    strings.TrimSpace(emoji),
		Polarity: polarity,
	}
	if err := tag.validate(polarity); err != nil {
		return Tag{}, err
	}
	return tag, nil
}

func (t Tag) validate(expected Polarity) error {
	if t.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidTag)
	}
	if utf8.RuneCountInString(t.Name) > maxTagNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidTag, maxTagNameLength)
	}
	if expected != PolarityPositive && expected != PolarityNegative {
		return fmt.Errorf("%w: unknown polarity %q", ErrInvalidTag, expected)
	}
	if t.Polarity != "" && t.Polarity != expected {
		return fmt.Errorf("%w: %s tag in %s list", ErrInvalidTag, t.Polarity, expected)
	}
	return nil
}

// Entry is the persisted daily entry row. At most one exists per (user, entry_date).
type Entry struct {
	ID               uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID           uint      `gorm:"column:user_id;not null;uniqueIndex:idx_daily_entries_user_date,priority:1"`
	EntryDate        string    `gorm:"column:entry_date;size:10;not null;uniqueIndex:idx_daily_entries_user_date,priority:2"`
	Reflection       string    `gorm:"column:reflection;type:text;not null;default:''"`
	PositiveTagsJSON string    `gorm:"column:positive_tags;type:text;not null;default:'[]'"`
	NegativeTagsJSON string    `gorm:"column:negative_tags;type:text;not null;default:'[]'"`
	WorthIt          *bool     `gorm:"column:worth_it"`
	Sentiment        Sentiment `gorm:"column:sentiment;size:16;not null;default:'balanced'"`
	MoodScore        int       `gorm:"column:mood_score;not null;default:5"`
	AISummary        string    `gorm:"column:ai_summary;type:text;not null;default:''"`
	WordCount        int       `gorm:"column:word_count;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "daily_entries"
}

// DailyStat is the cached per-day aggregate. Every value is cumulative over
// the user's entries dated on or before StatDate, so it can be rebuilt from entries.
type DailyStat struct {
	UserID           uint      `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"-"`
	StatDate         string    `gorm:"column:stat_date;primaryKey;size:10" json:"date"`
	EntryCount       int       `gorm:"column:entry_count;not null;default:0" json:"entry_count"`
	AvgMoodScore     float64   `gorm:"column:avg_mood_score;not null;default:0" json:"avg_mood_score"`
	PositiveTagCount int       `gorm:"column:positive_tag_count;not null;default:0" json:"positive_tag_count"`
	NegativeTagCount int       `gorm:"column:negative_tag_count;not null;default:0" json:"negative_tag_count"`
	WorthItDays      int       `gorm:"column:worth_it_days;not null;default:0" json:"worth_it_days"`
	TotalWords       int       `gorm:"column:total_words;not null;default:0" json:"total_words"`
	StreakDays       int       `gorm:"column:streak_days;not null;default:0" json:"streak_days"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (DailyStat) TableName() string {
	return "zen_stats"
}

// DailyEntry is the decoded view of an entry returned to callers.
type DailyEntry struct {
	ID           uint      `json:"id,omitempty"`
	UserID       uint      `json:"user_id"`
	Date         string    `json:"date"`
	Submitted    bool      `json:"submitted"`
	Reflection   string    `json:"reflection"`
	PositiveTags []Tag     `json:"positive_tags"`
	NegativeTags []Tag     `json:"negative_tags"`
	WorthIt      *bool     `json:"worth_it"`
	Sentiment    Sentiment `json:"sentiment,omitempty"`
	MoodScore    int       `json:"mood_score"`
	AISummary    string    `json:"ai_summary"`
	WordCount    int       `json:"word_count"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// EmptyDay returns the value reported for a calendar day without an entry.
func EmptyDay(userID uint, date string) DailyEntry {
	return DailyEntry{
		UserID:       userID,
		Date:         date,
		PositiveTags: []Tag{},
		NegativeTags: []Tag{},
	}
}

// SaveEntryRequest carries the content of today's reflection.
type SaveEntryRequest struct {
	UserID       uint
	Reflection   string
	PositiveTags []Tag
	NegativeTags []Tag
	WorthIt      *bool
}

// SavedEntry reports the outcome of SaveDailyEntry.
type SavedEntry struct {
	EntryID   uint
	Date      string
	Created   bool
	MoodScore int
	Sentiment Sentiment
	Stat      DailyStat
}

// MonthCounts is one month of a year summary.
type MonthCounts struct {
	PositiveCount int `json:"positive_count"`
	NegativeCount int `json:"negative_count"`
	TotalCount    int `json:"total_count"`
}

// DayCounts is one submitted day of a month summary.
type DayCounts struct {
	PositiveCount int   `json:"positive_count"`
	NegativeCount int   `json:"negative_count"`
	Submitted     bool  `json:"submitted"`
	WorthIt       *bool `json:"worth_it"`
}

// TodayStatus answers whether today's reflection has been saved.
type TodayStatus struct {
	Date       string `json:"date"`
	Submitted  bool   `json:"submitted"`
	StreakDays int    `json:"streak_days"`
}

// FormatDate renders a calendar date in the storage layout.
func FormatDate(value time.Time) string {
	return value.Format(dateLayout)
}

// CalendarDate validates the components and returns the storage-layout date.
func CalendarDate(year, month, day int) (string, error) {
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 {
		return "", fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	value := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if value.Year() != year || int(value.Month()) != month || value.Day() != day {
		return "", fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	return FormatDate(value), nil
}
