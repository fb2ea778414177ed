package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/najdeno/internal/feed"
	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/moderation"
	"github.com/erazemk/najdeno/internal/store"
)

// Field length limits for new posts.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 1000
	MaxQuestionLength    = 200
)

// ItemFields are the finder's input for a new post.
type ItemFields struct {
	Name             string
	Category         string
	Description      string
	Location         string
	DateFound        time.Time
	SecurityQuestion string
}

func (f *ItemFields) normalize() (model.Category, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Location = strings.TrimSpace(f.Location)
	f.SecurityQuestion = strings.TrimSpace(f.SecurityQuestion)

	switch {
	case f.Name == "":
		return "", invalid("name", "required")
	case utf8.RuneCountInString(f.Name) > MaxNameLength:
		return "", invalid("name", "at most %d characters", MaxNameLength)
	case f.Location == "":
		return "", invalid("location", "required")
	case utf8.RuneCountInString(f.Description) > MaxDescriptionLength:
		return "", invalid("description", "at most %d characters", MaxDescriptionLength)
	case utf8.RuneCountInString(f.SecurityQuestion) > MaxQuestionLength:
		return "", invalid("security_question", "at most %d characters", MaxQuestionLength)
	}
	c, ok := model.ParseCategory(f.Category)
	if !ok {
		return "", invalid("category", "unknown category %q", f.Category)
	}
	return c, nil
}

// PublishItem screens a new post and stores it as found. A refused post
// returns a *moderation.Rejection and nothing is stored. Saved alerts are
// matched in the background once the item is committed.
func (s *Service) PublishItem(ctx context.Context, actor Actor, f ItemFields, photo []byte) (*model.Item, error) {
	category, err := f.normalize()
	if err != nil {
		return nil, err
	}

	res, err := s.gate.Submit(ctx, moderation.Submission{
		Title:       f.Name,
		Description: f.Description,
		Photo:       photo,
	})
	if err != nil {
		var rej *moderation.Rejection
		if errors.As(err, &rej) {
			slog.Warn("post rejected", "user", actor.ID, "field", rej.Field, "reason", rej.Reason)
		}
		return nil, err
	}

	processed, err := imaging.Process(bytes.NewReader(photo))
	if errors.Is(err, imaging.ErrUnsupported) {
		return nil, invalid("photo", "must be a JPEG or PNG image")
	}
	if err != nil {
		return nil, invalid("photo", "could not be read: %v", err)
	}

	now := s.clock()
	photoID := newID()
	if err := store.SavePhoto(ctx, s.db, photoID, processed, now); err != nil {
		return nil, err
	}

	dateFound := f.DateFound
	if dateFound.IsZero() {
		dateFound = now
	}

	item, err := store.CreateItem(ctx, s.db, model.Item{
		ID:               newID(),
		ReporterID:       actor.ID,
		ReporterName:     actor.Name,
		Name:             f.Name,
		Category:         category,
		Description:      f.Description,
		Location:         f.Location,
		DateFound:        dateFound,
		PhotoID:          photoID,
		PhotoURL:         "/api/photos/" + photoID,
		SecurityQuestion: f.SecurityQuestion,
		NeedsReview:      res.NeedsReview,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		if derr := store.DeletePhoto(context.WithoutCancel(ctx), s.db, photoID); derr != nil {
			slog.Error("failed to discard photo of unsaved item", "photo_id", photoID, "error", derr)
		}
		return nil, err
	}

	slog.Info("item published", "item_id", item.ID, "user", actor.ID, "category", item.Category, "photo", res.Verdict)
	s.publish(feed.ItemChanged(*item))

	published := item.Clone()
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.matchAlerts(ctx, published); err != nil {
			slog.Error("alert matching failed", "item_id", published.ID, "error", err)
		}
	}()

	return item, nil
}

// GetItem returns an item as viewerID may see it. Hidden items are only
// shown to their owner and claimant.
func (s *Service) GetItem(ctx context.Context, id, viewerID string) (*model.Item, error) {
	item, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.Hidden && !item.IsOwner(viewerID) && !item.IsClaimant(viewerID) {
		return nil, ErrNotFound
	}
	redacted := item.RedactedFor(viewerID)
	return &redacted, nil
}

// DeleteItem removes the actor's own item. Returned items are kept as a
// record of the return.
func (s *Service) DeleteItem(ctx context.Context, itemID, actorID string) error {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return err
	}
	d, err := lifecycle.Decide(*item, lifecycle.Request{Event: lifecycle.EventDelete, ActorID: actorID})
	if err != nil {
		return err
	}

	err = store.DeleteItem(ctx, s.db, itemID, d.From)
	if errors.Is(err, store.ErrStale) {
		s.cache.Invalidate(itemID)
		return ErrConflict
	}
	if err != nil {
		return err
	}

	slog.Info("item deleted", "item_id", itemID, "user", actorID, "status", d.From)
	s.publish(feed.ItemRemoved(itemID))
	return nil
}

// ListFeed returns the public feed. Hidden items are never included. A zero
// window uses the configured one; a zero limit the page size.
func (s *Service) ListFeed(ctx context.Context, q feed.Query) ([]model.Item, error) {
	q.Now = s.clock()
	if q.Window == 0 {
		q.Window = s.window
	}
	if q.Limit <= 0 || q.Limit > s.pageSize {
		q.Limit = s.pageSize
	}

	var statuses []model.Status
	if q.Group != "" {
		statuses = q.Group.Statuses()
	}
	items, err := store.ListItems(ctx, s.db, store.ItemFilter{
		Statuses: statuses,
		Category: q.Category,
		Search:   q.Search,
		Since:    q.Since(),
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return redactAll(items, ""), nil
}

// ListUserItems returns the items userID posted or claimed, including
// hidden ones.
func (s *Service) ListUserItems(ctx context.Context, userID string) ([]model.Item, error) {
	items, err := store.ListItems(ctx, s.db, store.ItemFilter{
		ReporterID:    userID,
		ClaimantID:    userID,
		IncludeHidden: true,
	})
	if err != nil {
		return nil, err
	}
	return redactAll(items, userID), nil
}

// ItemHistory returns the committed transitions of an item. It follows the
// visibility of GetItem: deleted items, and hidden items for anyone but the
// owner and the claimant, are not found.
func (s *Service) ItemHistory(ctx context.Context, itemID, viewerID string) ([]model.Transition, error) {
	if _, err := s.GetItem(ctx, itemID, viewerID); err != nil {
		return nil, err
	}
	return store.GetItemHistory(ctx, s.db, itemID)
}

// Stats counts items per status.
func (s *Service) Stats(ctx context.Context) (map[model.Status]int, error) {
	return store.CountItemsByStatus(ctx, s.db)
}

// Photo returns a stored photo.
func (s *Service) Photo(ctx context.Context, id string) ([]byte, string, error) {
	data, mime, err := store.GetPhoto(ctx, s.db, id)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", fmt.Errorf("photo %s: %w", id, store.ErrNotFound)
	}
	return data, mime, nil
}

func redactAll(items []model.Item, viewerID string) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		out = append(out, item.RedactedFor(viewerID))
	}
	return out
}
