// Package service is the application layer of najdeno. It combines the
// moderation gate, the lifecycle state machine, the handoff codec and the
// store into the operations exposed over HTTP, and publishes every commit
// to the feed hub.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/feed"
	"github.com/erazemk/najdeno/internal/handoff"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/moderation"
	"github.com/erazemk/najdeno/internal/store"
)

var (
	ErrNotFound          = errors.New("item no longer exists")
	ErrNoLongerAvailable = errors.New("item no longer available to claim")
	ErrConflict          = errors.New("item was changed by someone else, reload and try again")
	ErrChatUnavailable   = errors.New("chat is only open to the finder and the claimant of a claimed item")
	ErrValidation        = errors.New("invalid input")
)

// ValidationError rejects malformed input. It matches ErrValidation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   string
	Name string
}

// Options configures a Service.
type Options struct {
	DB    *sql.DB
	Gate  *moderation.Gate
	Codec *handoff.Codec
	// Hub receives committed changes. New creates one when nil.
	Hub *feed.Hub
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	FeedWindow time.Duration
	PageSize   int
	CacheSize  int
	// AlertWorkers bounds concurrent alert notifications per publish.
	AlertWorkers int
}

// Service implements the lost-and-found operations.
type Service struct {
	db    *sql.DB
	gate  *moderation.Gate
	codec *handoff.Codec
	hub   *feed.Hub
	cache *feed.Cache
	now   func() time.Time

	window       time.Duration
	pageSize     int
	alertWorkers int

	// background tracks alert matching started by PublishItem.
	background sync.WaitGroup
}

// New returns a service.
func New(opts Options) (*Service, error) {
	if opts.DB == nil || opts.Gate == nil || opts.Codec == nil {
		return nil, errors.New("service needs a database, a moderation gate and a handoff codec")
	}
	s := &Service{
		db:           opts.DB,
		gate:         opts.Gate,
		codec:        opts.Codec,
		hub:          opts.Hub,
		now:          opts.Now,
		window:       opts.FeedWindow,
		pageSize:     opts.PageSize,
		alertWorkers: opts.AlertWorkers,
	}
	if s.hub == nil {
		s.hub = feed.NewHub()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.pageSize <= 0 {
		s.pageSize = 50
	}
	if s.alertWorkers <= 0 {
		s.alertWorkers = 4
	}
	s.cache = feed.NewCache(func(ctx context.Context, id string) (*model.Item, error) {
		return store.GetItem(ctx, s.db, id)
	}, opts.CacheSize)
	return s, nil
}

// Hub returns the hub committed changes are published to.
func (s *Service) Hub() *feed.Hub {
	return s.hub
}

// Wait blocks until background work started by earlier calls is done.
func (s *Service) Wait() {
	s.background.Wait()
}

// Now returns the service's current time, the clock handoff codes are
// issued and judged by.
func (s *Service) Now() time.Time {
	return s.clock()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func newID() string {
	return uuid.NewString()
}

// loadItem reads the current stored item for a write.
func (s *Service) loadItem(ctx context.Context, id string) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// publish applies e to the cache before fanning it out, so a subscriber
// reacting to the event reads the new state. Events from concurrent commits
// may arrive out of order; the cache keeps the highest version.
func (s *Service) publish(e feed.Event) {
	s.cache.Apply(e)
	s.hub.Publish(e)
}

// transition runs one lifecycle event against the stored item and commits
// the result with its notifications.
func (s *Service) transition(ctx context.Context, itemID string, req lifecycle.Request) (*model.Item, lifecycle.Decision, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, lifecycle.Decision{}, err
	}

	req.Now = s.clock()
	d, err := lifecycle.Decide(*item, req)
	if err != nil {
		return nil, d, err
	}
	next := lifecycle.Apply(*item, d, req)
	notes := s.notifications(next, d, req)

	next.Version, err = store.CommitTransition(ctx, s.db, d.From, next, model.Transition{
		ItemID:  next.ID,
		Event:   string(req.Event),
		ActorID: req.ActorID,
		At:      req.Now,
	}, notes)
	if errors.Is(err, store.ErrStale) {
		s.cache.Invalidate(itemID)
		return nil, d, ErrConflict
	}
	if err != nil {
		return nil, d, fmt.Errorf("committing %s: %w", req.Event, err)
	}

	slog.Info("item transition", "item_id", next.ID, "event", req.Event, "from", d.From, "to", d.To, "actor", req.ActorID)
	s.publish(feed.ItemChanged(next))
	for _, n := range notes {
		s.hub.Publish(feed.NotificationCreated(n))
	}
	return &next, d, nil
}

// notifications renders the notices a decision owes.
func (s *Service) notifications(item model.Item, d lifecycle.Decision, req lifecycle.Request) []model.Notification {
	var out []model.Notification
	for _, n := range d.Notify {
		var title, msg string
		switch n.Type {
		case model.NotifyClaimRequest:
			title = "New Claim Request"
			msg = fmt.Sprintf("%s answered your security question. Review it now.", nameOr(req.ActorName))
		case model.NotifyClaimAlert:
			title = "Item Claimed"
			msg = fmt.Sprintf("%s has claimed your %q.", nameOr(req.ActorName), item.Name)
		case model.NotifyClaimApproved:
			title = "Claim Approved!"
			msg = fmt.Sprintf("The finder approved your answer for %q. You can now chat!", item.Name)
		default:
			continue
		}
		out = append(out, model.Notification{
			ID:            newID(),
			RecipientID:   n.Recipient,
			Type:          n.Type,
			Title:         title,
			Message:       msg,
			RelatedItemID: item.ID,
			CreatedAt:     req.Now,
		})
	}
	return out
}

func nameOr(name string) string {
	if name == "" {
		return "Someone"
	}
	return name
}
