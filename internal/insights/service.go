package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/journal"
	"go.uber.org/zap"
)

const (
	// KindDailyInsight labels interactions produced by AnalyzeDay.
	KindDailyInsight = "daily_insight"

	opAnalyzeDay           = "insights.analyze_day"
	reasonGenerationFailed = "generation_failed"

	systemPrompt = "You are a warm, concise journaling companion. Reflect back what the person wrote, " +
		"notice patterns between their positive and difficult moments, and offer one gentle suggestion. " +
		"Answer in the language the reflection is written in, in at most three short paragraphs."
)

var (
	// ErrNoEntry indicates that the requested day has no saved entry to analyze.
	ErrNoEntry       = errors.New("insights: no entry for date")
	errMissingSource = errors.New("entry source is required")
	errMissingModel  = errors.New("generator is required")
)

// EntrySource is the slice of the journal the analyzer reads from and logs to.
type EntrySource interface {
	DayEntry(ctx context.Context, userID uint, year, month, day int) (journal.DailyEntry, error)
	RecordInteraction(ctx context.Context, record journal.InteractionRecord) (journal.Interaction, error)
}

// ServiceConfig describes the dependencies of the insights service.
type ServiceConfig struct {
	Entries   EntrySource
	Generator Generator
	Logger    *zap.Logger
}

// Service asks the language model to reflect on a saved day and logs the exchange.
type Service struct {
	entries   EntrySource
	generator Generator
	logger    *zap.Logger
}

// Insight is the generated reflection for one day.
type Insight struct {
	InteractionID string `json:"interaction_id"`
	Date          string `json:"date"`
	Text          string `json:"text"`
	Model         string `json:"model"`
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Entries == nil {
		return nil, failures.New("insights.service.new", "missing_entries", errMissingSource)
	}
	if cfg.Generator == nil {
		return nil, failures.New("insights.service.new", "missing_generator", errMissingModel)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{entries: cfg.Entries, generator: cfg.Generator, logger: logger}, nil
}

// AnalyzeDay generates an insight for the user's entry on the given day.
func (s *Service) AnalyzeDay(ctx context.Context, userID uint, year, month, day int) (Insight, error) {
	entry, err := s.entries.DayEntry(ctx, userID, year, month, day)
	if err != nil {
		return Insight{}, err
	}
	if !entry.Submitted {
		return Insight{}, ErrNoEntry
	}

	prompt := BuildPrompt(entry)
	completion, err := s.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		s.logger.Error("insights service error",
			zap.String("operation", opAnalyzeDay),
			zap.String("reason", reasonGenerationFailed),
			zap.Error(err),
			zap.Uint("user_id", userID),
			zap.String("entry_date", entry.Date))
		return Insight{}, failures.New(opAnalyzeDay, reasonGenerationFailed, err)
	}

	interaction, err := s.entries.RecordInteraction(ctx, journal.InteractionRecord{
		UserID:    userID,
		EntryDate: entry.Date,
		Kind:      KindDailyInsight,
		Prompt:    prompt,
		Response:  completion.Text,
		Model:     completion.Model,
	})
	if err != nil {
		return Insight{}, err
	}
	return Insight{
		InteractionID: interaction.ID,
		Date:          entry.Date,
		Text:          completion.Text,
		Model:         completion.Model,
	}, nil
}

// BuildPrompt renders the entry as plain data for the model.
func BuildPrompt(entry journal.DailyEntry) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Date: %s\n", entry.Date)
	builder.WriteString("Reflection:\n")
	if reflection := strings.TrimSpace(entry.Reflection); reflection != "" {
		builder.WriteString(reflection)
	} else {
		builder.WriteString("(no written reflection)")
	}
	builder.WriteString("\n")
	writeTags(&builder, "Positive moments", entry.PositiveTags)
	writeTags(&builder, "Difficult moments", entry.NegativeTags)
	switch {
	case entry.WorthIt == nil:
		builder.WriteString("Worth it: not answered\n")
	case *entry.WorthIt:
		builder.WriteString("Worth it: yes\n")
	default:
		builder.WriteString("Worth it: no\n")
	}
	return builder.String()
}

func writeTags(builder *strings.Builder, label string, tags []journal.Tag) {
	fmt.Fprintf(builder, "%s:", label)
	if len(tags) == 0 {
		builder.WriteString(" none\n")
		return
	}
	builder.WriteString("\n")
	for _, tag := range tags {
		line := strings.TrimSpace(strings.Join([]string{tag.Emoji, tag.Name}, " "))
		if tag.Context != "" {
			line = fmt.Sprintf("%s (%s)", line, tag.Context)
		}
		fmt.Fprintf(builder, "- %s\n", line)
	}
}

// IsGenerationFailure reports whether err came from the language model call
// rather than from storage.
func IsGenerationFailure(err error) bool {
	return failures.CodeOf(err) == opAnalyzeDay+"."+reasonGenerationFailed
}
