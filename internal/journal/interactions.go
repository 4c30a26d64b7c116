package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"go.uber.org/zap"
)

const (
	opRecordInteraction      = "journal.record_interaction"
	opListInteractions       = "journal.list_interactions"
	reasonIDGeneration       = "id_generation_failed"
	reasonInteractionInsert  = "interaction_insert_failed"
	defaultInteractionsLimit = 20
)

// ErrInvalidInteraction indicates an interaction without a kind or prompt.
var ErrInvalidInteraction = errors.New("journal: invalid interaction")

// Interaction is an append-only record of a prompt sent to the language model
// and the text it returned.
type Interaction struct {
	ID        string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;index:idx_ai_interactions_user_time,priority:1" json:"user_id"`
	EntryDate string    `gorm:"column:entry_date;size:10;not null;default:''" json:"entry_date"`
	Kind      string    `gorm:"column:kind;size:32;not null" json:"kind"`
	Prompt    string    `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Response  string    `gorm:"column:response;type:text;not null" json:"response"`
	Model     string    `gorm:"column:model;size:100;not null;default:''" json:"model"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_ai_interactions_user_time,priority:2" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Interaction) TableName() string {
	return "ai_interactions"
}

// InteractionRecord is the input to RecordInteraction.
type InteractionRecord struct {
	UserID    uint
	EntryDate string
	Kind      string
	Prompt    string
	Response  string
	Model     string
}

// RecordInteraction appends a prompt/response pair to the log.
func (s *Service) RecordInteraction(ctx context.Context, record InteractionRecord) (Interaction, error) {
	if s.db == nil {
		s.logError(opRecordInteraction, reasonMissingDatabase, errMissingDatabase)
		return Interaction{}, failures.New(opRecordInteraction, reasonMissingDatabase, errMissingDatabase)
	}
	if record.UserID == 0 {
		return Interaction{}, ErrInvalidUserID
	}
	if strings.TrimSpace(record.Kind) == "" || strings.TrimSpace(record.Prompt) == "" {
		return Interaction{}, ErrInvalidInteraction
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRecordInteraction, reasonIDGeneration, err, zap.Uint("user_id", record.UserID))
		return Interaction{}, failures.New(opRecordInteraction, reasonIDGeneration, err)
	}
	interaction := Interaction{
		ID:        id,
		UserID:    record.UserID,
		EntryDate: record.EntryDate,
		Kind:      strings.TrimSpace(record.Kind),
		Prompt:    record.Prompt,
		Response:  record.Response,
		Model:     record.Model,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&interaction).Error; err != nil {
		s.logError(opRecordInteraction, reasonInteractionInsert, err, zap.Uint("user_id", record.UserID))
		return Interaction{}, failures.New(opRecordInteraction, reasonInteractionInsert, err)
	}
	return interaction, nil
}

// ListInteractions returns the user's most recent interactions first.
func (s *Service) ListInteractions(ctx context.Context, userID uint, limit int) ([]Interaction, error) {
	if s.db == nil {
		s.logError(opListInteractions, reasonMissingDatabase, errMissingDatabase)
		return nil, failures.New(opListInteractions, reasonMissingDatabase, errMissingDatabase)
	}
	if limit < 0 {
		return nil, ErrInvalidPagination
	}
	if limit == 0 {
		limit = defaultInteractionsLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	var interactions []Interaction
	if err := s.db.WithContext(ctx).
		Where(queryUserID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&interactions).Error; err != nil {
		s.logError(opListInteractions, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return nil, failures.New(opListInteractions, reasonQueryFailed, err)
	}
	return interactions, nil
}
