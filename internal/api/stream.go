package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/najdeno/internal/feed"
	"github.com/erazemk/najdeno/internal/service"
)

// StreamHandler serves the live feed as server-sent events.
type StreamHandler struct {
	Svc *service.Service
	// Heartbeat is the interval of keep-alive comments.
	Heartbeat time.Duration
}

// Stream handles GET /api/feed/stream. It accepts the same filters as
// GET /api/items. Item events that leave the filtered view are sent with
// removed set, so the client can drop its copy. Notifications and chat
// messages are only sent to the users they concern.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	viewer := actor(r).ID

	rc := http.NewResponseController(w)
	// The server's write timeout would otherwise cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Warn("could not clear write deadline for event stream", "error", err)
	}

	sub := h.Svc.Hub().Subscribe(feed.Matcher(viewer))
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Error("event stream not supported", "error", err)
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	events := make(chan []feed.Event)
	go func() {
		defer close(events)
		for {
			batch, err := sub.Next(r.Context())
			if err != nil {
				return
			}
			select {
			case events <- batch:
			case <-r.Context().Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case batch, ok := <-events:
			if !ok {
				return
			}
			for _, e := range batch {
				if err := writeEvent(w, streamEvent(q, viewer, e)); err != nil {
					return
				}
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// streamEvent prepares e for viewer: item events outside q become removals
// and visible items are redacted.
func streamEvent(q feed.Query, viewer string, e feed.Event) feed.Event {
	if e.Kind != feed.KindItem {
		return e
	}
	if !q.Visible(e) {
		return feed.ItemRemoved(e.ID)
	}
	redacted := e.Item.RedactedFor(viewer)
	e.Item = &redacted
	return e
}

func writeEvent(w http.ResponseWriter, e feed.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return err
}
