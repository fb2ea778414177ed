package service

import (
	"context"
	"log/slog"

	"github.com/erazemk/najdeno/internal/handoff"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// Return is the outcome of a redeemed handoff code.
type Return struct {
	Item      *model.Item `json:"item"`
	Celebrate bool        `json:"celebrate"`
}

// IssueHandoffToken creates a fresh code for the claimant of a verified
// item. Each call restarts the validity window.
func (s *Service) IssueHandoffToken(ctx context.Context, itemID, actorID string) (handoff.Token, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return handoff.Token{}, err
	}
	if err := lifecycle.AuthorizeHandoff(*item, actorID); err != nil {
		return handoff.Token{}, err
	}

	t, err := s.codec.Issue(item.ID, actorID, s.clock())
	if err != nil {
		return handoff.Token{}, err
	}
	slog.Info("handoff code issued", "item_id", item.ID, "user", actorID, "expires", t.ExpiresAt())
	return t, nil
}

// RedeemHandoffToken checks a scanned code and marks the item returned.
// Expiry is judged from the timestamp in the payload before the item is
// looked at, so an expired code is refused whatever state the item is in.
func (s *Service) RedeemHandoffToken(ctx context.Context, payload, actorID string) (*Return, error) {
	t, err := s.codec.Validate(payload, s.clock())
	if err != nil {
		slog.Warn("handoff code refused", "user", actorID, "error", err)
		return nil, err
	}

	next, d, err := s.transition(ctx, t.ItemID, lifecycle.Request{
		Event:   lifecycle.EventRedeem,
		ActorID: actorID,
		Holder:  t.HolderID,
	})
	if err != nil {
		return nil, err
	}
	return &Return{Item: next, Celebrate: d.Celebrate}, nil
}

// Scanner returns a finder-side scanner that redeems codes as actorID.
func (s *Service) Scanner(camera handoff.Camera, actorID string) *handoff.Scanner {
	return handoff.NewScanner(s.codec, camera, func(ctx context.Context, t handoff.Token) error {
		_, err := s.RedeemHandoffToken(ctx, t.Payload, actorID)
		return err
	}, s.now)
}
