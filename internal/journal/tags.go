package journal

import (
	"encoding/json"
	"strings"
)

// storedTag is the on-disk shape; polarity is implied by the column.
type storedTag struct {
	Name    string `json:"name"`
	Context string `json:"context"`
	Emoji   string `json:"emoji"`
}

func encodeTags(tags []Tag) (string, error) {
	stored := make([]storedTag, 0, len(tags))
	for _, tag := range tags {
		stored = append(stored, storedTag{Name: tag.Name, Context: tag.Context, Emoji: tag.Emoji})
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// decodeTags always returns a non-nil slice. A malformed blob yields an empty
// list together with the decode error so the caller can log it.
func decodeTags(raw string, polarity Polarity) ([]Tag, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return []Tag{}, nil
	}
	var stored []storedTag
	if err := json.Unmarshal([]byte(trimmed), &stored); err != nil {
		return []Tag{}, err
	}
	tags := make([]Tag, 0, len(stored))
	for _, item := range stored {
		tags = append(tags, Tag{
			Name:     item.Name,
			Context:  item.Context,
			Emoji:    item.Emoji,
			Polarity: polarity,
		})
	}
	return tags, nil
}

func normalizeTags(tags []Tag, polarity Polarity) ([]Tag, error) {
	if len(tags) > maxTagsPerList {
		return nil, ErrInvalidTag
	}
	normalized := make([]Tag, 0, len(tags))
	for _, tag := range tags {
		validated, err := NewTag(tag.Name, tag.Context, tag.Emoji, polarity)
		if err != nil {
			return nil, err
		}
		if tag.Polarity != "" && tag.Polarity != polarity {
			return nil, ErrInvalidTag
		}
		normalized = append(normalized, validated)
	}
	return normalized, nil
}
