package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleEntryStream(c *gin.Context) {
	withUser(c, func(userID uint) {
		ctx := c.Request.Context()
		subscription := h.events.Subscribe(ctx, userID, h.heartbeat)
		defer subscription.Close()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
		c.Writer.Flush()

		h.logger.Debug("entry stream opened", zap.Uint("user_id", userID))
		defer h.logger.Debug("entry stream closed", zap.Uint("user_id", userID))

		c.Stream(func(_ io.Writer) bool {
			select {
			case <-subscription.Done():
				return false
			case event, ok := <-subscription.Events():
				if !ok {
					return false
				}
				c.SSEvent(event.EventType, event)
				return true
			}
		})
	})
}
