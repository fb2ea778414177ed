package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
)

func TestNotifications(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"n1", "n2", "n3"} {
		err := CreateNotification(ctx, database, model.Notification{
			ID:          id,
			RecipientID: "user",
			Type:        model.NotifyAlertMatch,
			Title:       "Found Item Alert!",
			Message:     "match",
			CreatedAt:   t0.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}
	CreateNotification(ctx, database, model.Notification{ID: "other", RecipientID: "someone", Type: model.NotifyAlertMatch, Title: "t", Message: "m", CreatedAt: t0})

	notes, err := ListNotifications(ctx, database, "user", 2)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != "n3" {
		t.Errorf("expected newest two, got %v", notes)
	}

	if n, _ := CountUnread(ctx, database, "user"); n != 3 {
		t.Errorf("expected 3 unread, got %d", n)
	}

	ok, err := MarkNotificationRead(ctx, database, "n1", "user")
	if err != nil || !ok {
		t.Fatalf("MarkNotificationRead: %v, %v", ok, err)
	}
	if ok, _ := MarkNotificationRead(ctx, database, "other", "user"); ok {
		t.Error("marked someone else's notification")
	}
	if n, _ := CountUnread(ctx, database, "user"); n != 2 {
		t.Errorf("expected 2 unread, got %d", n)
	}

	changed, err := MarkAllNotificationsRead(ctx, database, "user")
	if err != nil || changed != 2 {
		t.Errorf("MarkAllNotificationsRead = %d, %v", changed, err)
	}
	if n, _ := CountUnread(ctx, database, "someone"); n != 1 {
		t.Errorf("other recipient affected, unread %d", n)
	}
}
