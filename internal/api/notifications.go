package api

import (
	"net/http"
	"strconv"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
)

// InboxHandler handles notifications, saved alerts and chat.
type InboxHandler struct {
	Svc *service.Service
}

type createAlertRequest struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

type messageRequest struct {
	Text string `json:"text"`
}

// ListNotifications handles GET /api/notifications, optionally ?limit=.
func (h *InboxHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	notes, err := h.Svc.ListNotifications(r.Context(), actor(r).ID, limit)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, notes)
}

// Unread handles GET /api/notifications/unread.
func (h *InboxHandler) Unread(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.UnreadCount(r.Context(), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"unread": n})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.MarkNotificationRead(r.Context(), r.PathValue("id"), actor(r).ID); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "marked read"})
}

// MarkAllRead handles POST /api/notifications/read.
func (h *InboxHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.MarkAllNotificationsRead(r.Context(), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"marked": n})
}

// ListAlerts handles GET /api/alerts.
func (h *InboxHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Svc.ListAlerts(r.Context(), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	jsonResponse(w, http.StatusOK, alerts)
}

// CreateAlert handles POST /api/alerts.
func (h *InboxHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.Svc.CreateAlert(r.Context(), actor(r).ID, req.Keyword, req.Category)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, alert)
}

// DeleteAlert handles DELETE /api/alerts/{id}.
func (h *InboxHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteAlert(r.Context(), r.PathValue("id"), actor(r).ID); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "alert deleted"})
}

// ListMessages handles GET /api/items/{id}/messages, optionally ?after=seq.
func (h *InboxHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	var after int64
	if a := r.URL.Query().Get("after"); a != "" {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid after")
			return
		}
		after = n
	}

	msgs, err := h.Svc.ListMessages(r.Context(), r.PathValue("id"), actor(r).ID, after)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	jsonResponse(w, http.StatusOK, msgs)
}

// SendMessage handles POST /api/items/{id}/messages.
func (h *InboxHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.Svc.SendMessage(r.Context(), r.PathValue("id"), actor(r), req.Text)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, m)
}
