package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/najdeno/internal/feed"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

var (
	ErrAlertNotFound        = errors.New("alert not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// MaxMessageLength bounds a chat message.
const MaxMessageLength = 2000

// Report records a community report. It returns whether the item is now
// hidden. A second report by the same actor returns
// lifecycle.ErrAlreadyReported and is not counted again.
func (s *Service) Report(ctx context.Context, itemID, actorID, reason string) (bool, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, invalid("reason", "required")
	}

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if _, err := lifecycle.Decide(*item, lifecycle.Request{Event: lifecycle.EventReport, ActorID: actorID}); err != nil {
		return false, err
	}

	hidden, err := store.AddReport(ctx, s.db, model.Report{
		ID:         newID(),
		ItemID:     itemID,
		ReporterID: actorID,
		Reason:     reason,
		CreatedAt:  s.clock(),
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return false, lifecycle.ErrAlreadyReported
	case errors.Is(err, store.ErrNotFound):
		return false, ErrNotFound
	case errors.Is(err, store.ErrStale):
		return false, &lifecycle.StateError{Event: lifecycle.EventReport, Status: model.StatusReturned}
	case err != nil:
		return false, err
	}

	slog.Info("item reported", "item_id", itemID, "user", actorID, "reason", reason, "hidden", hidden)
	s.cache.Invalidate(itemID)
	if updated, err := store.GetItem(ctx, s.db, itemID); err == nil && updated != nil {
		s.publish(feed.ItemChanged(*updated))
	}
	return hidden, nil
}

// ListReports returns the audit trail, optionally for one item.
func (s *Service) ListReports(ctx context.Context, itemID string) ([]model.Report, error) {
	return store.ListReports(ctx, s.db, itemID)
}

// CreateAlert saves a search for the actor. An empty category means all.
func (s *Service) CreateAlert(ctx context.Context, actorID, keyword, category string) (*model.Alert, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, invalid("keyword", "required")
	}

	c := model.CategoryAll
	if category != "" && !strings.EqualFold(category, string(model.CategoryAll)) {
		var ok bool
		if c, ok = model.ParseCategory(category); !ok {
			return nil, invalid("category", "unknown category %q", category)
		}
	}

	return store.CreateAlert(ctx, s.db, model.Alert{
		ID:        newID(),
		OwnerID:   actorID,
		Keyword:   keyword,
		Category:  c,
		CreatedAt: s.clock(),
	})
}

// ListAlerts returns the actor's saved searches.
func (s *Service) ListAlerts(ctx context.Context, actorID string) ([]model.Alert, error) {
	return store.ListAlerts(ctx, s.db, actorID)
}

// DeleteAlert removes one of the actor's saved searches.
func (s *Service) DeleteAlert(ctx context.Context, id, actorID string) error {
	ok, err := store.DeleteAlert(ctx, s.db, id, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlertNotFound
	}
	return nil
}

// matchAlerts notifies every user with a saved search matching item, once
// per user. The poster is never notified about their own item.
func (s *Service) matchAlerts(ctx context.Context, item model.Item) error {
	alerts, err := store.ListAlertsForCategory(ctx, s.db, item.Category)
	if err != nil {
		return err
	}

	name := strings.ToLower(item.Name)
	seen := make(map[string]bool)
	var matched []model.Alert
	for _, a := range alerts {
		if a.OwnerID == item.ReporterID || seen[a.OwnerID] || !strings.Contains(name, a.Keyword) {
			continue
		}
		seen[a.OwnerID] = true
		matched = append(matched, a)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.alertWorkers)
	for _, a := range matched {
		g.Go(func() error {
			n := model.Notification{
				ID:            newID(),
				RecipientID:   a.OwnerID,
				Type:          model.NotifyAlertMatch,
				Title:         "Found Item Alert!",
				Message:       fmt.Sprintf("Someone just posted a %q matching your alert for %q.", item.Name, a.Keyword),
				RelatedItemID: item.ID,
				CreatedAt:     s.clock(),
			}
			if err := store.CreateNotification(ctx, s.db, n); err != nil {
				return err
			}
			s.hub.Publish(feed.NotificationCreated(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(matched) > 0 {
		slog.Info("alerts matched", "item_id", item.ID, "notified", len(matched))
	}
	return nil
}

// ListNotifications returns the actor's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, actorID string, limit int) ([]model.Notification, error) {
	return store.ListNotifications(ctx, s.db, actorID, limit)
}

// UnreadCount returns the actor's unread notification count.
func (s *Service) UnreadCount(ctx context.Context, actorID string) (int, error) {
	return store.CountUnread(ctx, s.db, actorID)
}

// MarkNotificationRead marks one of the actor's notifications as read.
func (s *Service) MarkNotificationRead(ctx context.Context, id, actorID string) error {
	ok, err := store.MarkNotificationRead(ctx, s.db, id, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks all of the actor's notifications as read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, actorID string) (int64, error) {
	return store.MarkAllNotificationsRead(ctx, s.db, actorID)
}

// SendMessage appends to an item's chat. Only the finder and the claimant
// can write, and only while the item is claimed or verified. Banned words
// are masked rather than refused.
func (s *Service) SendMessage(ctx context.Context, itemID string, actor Actor, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, invalid("text", "at most %d characters", MaxMessageLength)
	}

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanChat(*item, actor.ID) {
		return nil, ErrChatUnavailable
	}

	m, err := store.AppendMessage(ctx, s.db, model.Message{
		ItemID:     itemID,
		SenderID:   actor.ID,
		SenderName: nameOr(actor.Name),
		Text:       s.gate.Policy().Mask(text),
		CreatedAt:  s.clock(),
	})
	if err != nil {
		return nil, err
	}
	s.hub.Publish(feed.MessageAppended(*m, item.ReporterID, item.ClaimantID))
	return m, nil
}

// ListMessages returns the chat messages after afterSeq, oldest first.
func (s *Service) ListMessages(ctx context.Context, itemID, actorID string, afterSeq int64) ([]model.Message, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanChat(*item, actorID) {
		return nil, ErrChatUnavailable
	}
	return store.ListMessages(ctx, s.db, itemID, afterSeq)
}
