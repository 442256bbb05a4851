package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// sseEvents streams hub events to the client as server-sent events until the
// connection drops. A subscriber that connects after an event was published
// never sees it: at-most-once, no replay.
//
// @Summary      Live event stream (SSE)
// @Tags         events
// @Produce      text/event-stream
// @Router       /events [get]
func (h *Handler) sseEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	// comment frame so the client sees the stream is open
	_, _ = c.Writer.WriteString(": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			c.SSEvent(string(ev.Type), ev.Data)
			flusher.Flush()
		}
	}
}
