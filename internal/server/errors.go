package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/failures"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/insights"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/journal"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var expectedErrors = []errorMapping{
	{target: users.ErrInvalidInput, status: http.StatusBadRequest, code: "invalid_input"},
	{target: users.ErrDuplicateEmail, status: http.StatusConflict, code: "duplicate_email"},
	{target: users.ErrAuthenticationFailed, status: http.StatusUnauthorized, code: "authentication_failed"},
	{target: users.ErrUserNotFound, status: http.StatusNotFound, code: "user_not_found"},
	{target: journal.ErrUserNotFound, status: http.StatusNotFound, code: "user_not_found"},
	{target: journal.ErrInvalidUserID, status: http.StatusBadRequest, code: "invalid_user"},
	{target: journal.ErrEmptyEntry, status: http.StatusBadRequest, code: "empty_entry"},
	{target: journal.ErrInvalidTag, status: http.StatusBadRequest, code: "invalid_tag"},
	{target: journal.ErrInvalidDate, status: http.StatusBadRequest, code: "invalid_date"},
	{target: journal.ErrInvalidPagination, status: http.StatusBadRequest, code: "invalid_pagination"},
	{target: journal.ErrInvalidInteraction, status: http.StatusBadRequest, code: "invalid_interaction"},
	{target: insights.ErrNoEntry, status: http.StatusNotFound, code: "no_entry"},
}

// respondError maps service errors onto HTTP responses. Storage failures were
// already logged by the service that produced them.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	for _, mapping := range expectedErrors {
		if errors.Is(err, mapping.target) {
			c.JSON(mapping.status, gin.H{"error": mapping.code})
			return
		}
	}
	if code := failures.CodeOf(err); code != "" {
		status := http.StatusInternalServerError
		label := "storage_failure"
		if insights.IsGenerationFailure(err) {
			status = http.StatusBadGateway
			label = "insight_failed"
		}
		c.JSON(status, gin.H{"error": label, "code": code})
		return
	}
	h.logger.Error("unmapped handler error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func invalidRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}
