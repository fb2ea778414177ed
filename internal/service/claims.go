package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/erazemk/najdeno/internal/claim"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// InitiateClaim claims a found item for actor. Items with a security
// question go to the finder for approval; others are claimed at once.
// When another claim got there first the error matches
// ErrNoLongerAvailable.
func (s *Service) InitiateClaim(ctx context.Context, itemID string, actor Actor, proof model.ClaimProof, answer string) (*model.Item, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	attempt, err := claim.Compose(*item, actor.ID, actor.Name, proof, answer)
	if err != nil {
		return nil, err
	}
	return s.SubmitAttempt(ctx, attempt)
}

// SubmitAttempt commits a composed claim attempt. It is the submit step of
// a claim.Flow.
func (s *Service) SubmitAttempt(ctx context.Context, a claim.Attempt) (*model.Item, error) {
	next, _, err := s.transition(ctx, a.ItemID, a.Request())
	switch {
	case errors.Is(err, ErrConflict):
		return nil, ErrNoLongerAvailable
	case errors.Is(err, lifecycle.ErrWrongState):
		return nil, fmt.Errorf("%w: %w", ErrNoLongerAvailable, err)
	case err != nil:
		return nil, err
	}
	return next, nil
}

// Submitter adapts SubmitAttempt to a claim flow's submit step.
func (s *Service) Submitter() claim.SubmitFunc {
	return func(ctx context.Context, a claim.Attempt) error {
		_, err := s.SubmitAttempt(ctx, a)
		return err
	}
}

// ApproveClaim accepts a pending claim after the finder checked the answer.
func (s *Service) ApproveClaim(ctx context.Context, itemID, actorID string) (*model.Item, error) {
	return s.ownerEvent(ctx, itemID, actorID, lifecycle.EventApprove)
}

// RejectClaim refuses a pending claim and puts the item back on the feed.
func (s *Service) RejectClaim(ctx context.Context, itemID, actorID string) (*model.Item, error) {
	return s.ownerEvent(ctx, itemID, actorID, lifecycle.EventReject)
}

// VerifyClaim confirms the claimant's proof and unlocks the handoff.
func (s *Service) VerifyClaim(ctx context.Context, itemID, actorID string) (*model.Item, error) {
	return s.ownerEvent(ctx, itemID, actorID, lifecycle.EventVerify)
}

func (s *Service) ownerEvent(ctx context.Context, itemID, actorID string, e lifecycle.Event) (*model.Item, error) {
	next, _, err := s.transition(ctx, itemID, lifecycle.Request{Event: e, ActorID: actorID})
	if err != nil {
		return nil, err
	}
	return next, nil
}
