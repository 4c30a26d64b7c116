package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/journal"
	"github.com/gin-gonic/gin"
)

type tagPayload struct {
	Name    string `json:"name"`
	Context string `json:"context"`
	Emoji   string `json:"emoji"`
}

type saveEntryPayload struct {
	Reflection   string       `json:"reflection"`
	PositiveTags []tagPayload `json:"positive_tags"`
	NegativeTags []tagPayload `json:"negative_tags"`
	WorthIt      *bool        `json:"worth_it"`
}

type saveEntryResponse struct {
	EntryID   uint              `json:"entry_id"`
	Date      string            `json:"date"`
	Created   bool              `json:"created"`
	MoodScore int               `json:"mood_score"`
	Sentiment journal.Sentiment `json:"sentiment"`
	Stats     journal.DailyStat `json:"stats"`
}

type listEntriesResponse struct {
	Entries []journal.DailyEntry `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

func buildTags(payloads []tagPayload, polarity journal.Polarity) ([]journal.Tag, error) {
	tags := make([]journal.Tag, 0, len(payloads))
	for _, payload := range payloads {
		tag, err := journal.NewTag(payload.Name, payload.Context, payload.Emoji, polarity)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (h *httpHandler) handleSaveEntry(c *gin.Context) {
	withUser(c, func(userID uint) {
		var request saveEntryPayload
		if err := c.ShouldBindJSON(&request); err != nil {
			invalidRequest(c)
			return
		}
		positive, err := buildTags(request.PositiveTags, journal.PolarityPositive)
		if err != nil {
			h.respondError(c, err)
			return
		}
		negative, err := buildTags(request.NegativeTags, journal.PolarityNegative)
		if err != nil {
			h.respondError(c, err)
			return
		}

		saved, err := h.journal.SaveDailyEntry(c.Request.Context(), journal.SaveEntryRequest{
			UserID:       userID,
			Reflection:   request.Reflection,
			PositiveTags: positive,
			NegativeTags: negative,
			WorthIt:      request.WorthIt,
		})
		if err != nil {
			h.respondError(c, err)
			return
		}
		status := http.StatusOK
		if saved.Created {
			status = http.StatusCreated
		}
		c.JSON(status, saveEntryResponse{
			EntryID:   saved.EntryID,
			Date:      saved.Date,
			Created:   saved.Created,
			MoodScore: saved.MoodScore,
			Sentiment: saved.Sentiment,
			Stats:     saved.Stat,
		})
	})
}

func (h *httpHandler) handleListEntries(c *gin.Context) {
	withUser(c, func(userID uint) {
		limit, limitOK := queryInt(c, "limit")
		offset, offsetOK := queryInt(c, "offset")
		if !limitOK || !offsetOK {
			invalidRequest(c)
			return
		}
		entries, err := h.journal.ListEntries(c.Request.Context(), userID, limit, offset)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, listEntriesResponse{Entries: entries, Limit: limit, Offset: offset})
	})
}

func (h *httpHandler) handleEntryCount(c *gin.Context) {
	withUser(c, func(userID uint) {
		count, err := h.journal.EntryCount(c.Request.Context(), userID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	})
}

func (h *httpHandler) handleTodayStatus(c *gin.Context) {
	withUser(c, func(userID uint) {
		status, err := h.journal.TodayStatus(c.Request.Context(), userID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}

func (h *httpHandler) handleYearSummary(c *gin.Context) {
	withUser(c, func(userID uint) {
		values, ok := pathInts(c, "year")
		if !ok {
			invalidRequest(c)
			return
		}
		summary, err := h.journal.YearSummary(c.Request.Context(), userID, values[0])
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"year": values[0], "months": summary})
	})
}

func (h *httpHandler) handleMonthSummary(c *gin.Context) {
	withUser(c, func(userID uint) {
		values, ok := pathInts(c, "year", "month")
		if !ok {
			invalidRequest(c)
			return
		}
		summary, err := h.journal.MonthSummary(c.Request.Context(), userID, values[0], values[1])
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"year": values[0], "month": values[1], "days": summary})
	})
}

func (h *httpHandler) handleDayEntry(c *gin.Context) {
	withUser(c, func(userID uint) {
		values, ok := pathInts(c, "year", "month", "day")
		if !ok {
			invalidRequest(c)
			return
		}
		entry, err := h.journal.DayEntry(c.Request.Context(), userID, values[0], values[1], values[2])
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	})
}

func (h *httpHandler) handleStreak(c *gin.Context) {
	withUser(c, func(userID uint) {
		streak, err := h.journal.CurrentStreak(c.Request.Context(), userID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"streak_days": streak})
	})
}

func (h *httpHandler) handleAnalyzeDay(c *gin.Context) {
	withUser(c, func(userID uint) {
		if h.insights == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "insights_disabled"})
			return
		}
		values, ok := pathInts(c, "year", "month", "day")
		if !ok {
			invalidRequest(c)
			return
		}
		insight, err := h.insights.AnalyzeDay(c.Request.Context(), userID, values[0], values[1], values[2])
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, insight)
	})
}

func (h *httpHandler) handleListInsights(c *gin.Context) {
	withUser(c, func(userID uint) {
		limit, ok := queryInt(c, "limit")
		if !ok {
			invalidRequest(c)
			return
		}
		interactions, err := h.journal.ListInteractions(c.Request.Context(), userID, limit)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"interactions": interactions})
	})
}
