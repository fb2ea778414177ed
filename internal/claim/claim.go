// Package claim implements the guided claim flow: confirm the item,
// answer the finder's security question, describe the item, review and
// submit a single claim attempt.
package claim

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// Step is a screen in the claim flow.
type Step int

// Steps, in order.
const (
	StepConfirm Step = iota
	StepSecurity
	StepDetails
	StepReview
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepConfirm:
		return "confirm"
	case StepSecurity:
		return "security"
	case StepDetails:
		return "details"
	case StepReview:
		return "review"
	case StepDone:
		return "done"
	}
	return "unknown"
}

var (
	ErrNotReady         = errors.New("claim is not ready to submit")
	ErrAlreadySubmitted = errors.New("claim was already submitted")
	ErrInFlight         = errors.New("claim submission in progress")
)

// Attempt is one claim, consumed by a single claim transition.
type Attempt struct {
	ItemID       string
	ClaimantID   string
	ClaimantName string
	Proof        model.ClaimProof
	Answer       string
}

// Compose validates the claimant's input against item and builds an attempt.
// The answer is kept only when the item has a security question.
func Compose(item model.Item, claimantID, claimantName string, proof model.ClaimProof, answer string) (Attempt, error) {
	if item.IsOwner(claimantID) {
		return Attempt{}, lifecycle.ErrSelfClaim
	}
	proof.Description = strings.TrimSpace(proof.Description)
	proof.IdentifyingMarks = strings.TrimSpace(proof.IdentifyingMarks)
	if proof.Description == "" {
		return Attempt{}, lifecycle.ErrMissingProof
	}

	a := Attempt{
		ItemID:       item.ID,
		ClaimantID:   claimantID,
		ClaimantName: claimantName,
		Proof:        proof,
	}
	if item.HasSecurityQuestion() {
		a.Answer = strings.TrimSpace(answer)
		if a.Answer == "" {
			return Attempt{}, lifecycle.ErrMissingAnswer
		}
	}
	return a, nil
}

// Request converts the attempt into a lifecycle claim request.
func (a Attempt) Request() lifecycle.Request {
	proof := a.Proof
	return lifecycle.Request{
		Event:     lifecycle.EventClaim,
		ActorID:   a.ClaimantID,
		ActorName: a.ClaimantName,
		Proof:     &proof,
		Answer:    a.Answer,
	}
}

// SubmitFunc commits an attempt, typically through the service.
type SubmitFunc func(ctx context.Context, a Attempt) error

// Flow walks one user through claiming one item.
type Flow struct {
	item         model.Item
	claimantID   string
	claimantName string

	mu         sync.Mutex
	step       Step
	answer     string
	proof      model.ClaimProof
	submitting bool
	err        error
}

// NewFlow starts a claim flow. Owners cannot claim their own items and only
// found items can be claimed.
func NewFlow(item model.Item, claimantID, claimantName string) (*Flow, error) {
	if item.IsOwner(claimantID) {
		return nil, lifecycle.ErrSelfClaim
	}
	if item.Status != model.StatusFound {
		return nil, &lifecycle.StateError{Event: lifecycle.EventClaim, Status: item.Status}
	}
	return &Flow{item: item, claimantID: claimantID, claimantName: claimantName}, nil
}

// Step returns the current step.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Err returns the outcome of the last failed submission, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// SetAnswer records the answer to the security question.
func (f *Flow) SetAnswer(answer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = answer
}

// SetDetails records the claimant's description and identifying marks.
func (f *Flow) SetDetails(description, marks string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proof = model.ClaimProof{Description: description, IdentifyingMarks: marks}
}

// Next validates the current step and moves forward. Review only advances
// through Submit.
func (f *Flow) Next() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.step {
	case StepConfirm:
		if f.item.HasSecurityQuestion() {
			f.step = StepSecurity
		} else {
			f.step = StepDetails
		}
	case StepSecurity:
		if strings.TrimSpace(f.answer) == "" {
			return lifecycle.ErrMissingAnswer
		}
		f.step = StepDetails
	case StepDetails:
		if strings.TrimSpace(f.proof.Description) == "" {
			return lifecycle.ErrMissingProof
		}
		f.step = StepReview
	case StepReview:
		return ErrNotReady
	case StepDone:
		return ErrAlreadySubmitted
	}
	return nil
}

// Back returns to the previous applicable step.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.step {
	case StepSecurity:
		f.step = StepConfirm
	case StepDetails:
		if f.item.HasSecurityQuestion() {
			f.step = StepSecurity
		} else {
			f.step = StepConfirm
		}
	case StepReview:
		f.step = StepDetails
	}
}

// Attempt builds the attempt from the collected input.
func (f *Flow) Attempt() (Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Compose(f.item, f.claimantID, f.claimantName, f.proof, f.answer)
}

// Submit calls fn once with the attempt and returns its outcome. On failure
// the flow stays at review so the claimant sees the error; on success it
// moves to done.
func (f *Flow) Submit(ctx context.Context, fn SubmitFunc) error {
	f.mu.Lock()
	switch {
	case f.step == StepDone:
		f.mu.Unlock()
		return ErrAlreadySubmitted
	case f.step != StepReview:
		f.mu.Unlock()
		return ErrNotReady
	case f.submitting:
		f.mu.Unlock()
		return ErrInFlight
	}
	a, err := Compose(f.item, f.claimantID, f.claimantName, f.proof, f.answer)
	if err != nil {
		f.err = err
		f.mu.Unlock()
		return err
	}
	f.submitting = true
	f.mu.Unlock()

	err = fn(ctx, a)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	f.err = err
	if err == nil {
		f.step = StepDone
	}
	return err
}
