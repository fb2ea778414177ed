// Package lifecycle holds the item state machine. Every status change an
// item can go through is decided here, without touching storage.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/moderation"
)

// Event is something an actor does to an item.
type Event string

// Events.
const (
	EventClaim   Event = "claim"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventVerify  Event = "verify"
	EventRedeem  Event = "redeem"
	EventDelete  Event = "delete"
	EventReport  Event = "report"
)

var (
	ErrNotOwner        = errors.New("only the owner can do this")
	ErrNotClaimant     = errors.New("only the claimant can do this")
	ErrNotParty        = errors.New("only the owner and the claimant can do this")
	ErrSelfClaim       = errors.New("you cannot claim your own item")
	ErrOwnReport       = errors.New("you cannot report your own item")
	ErrAlreadyReported = errors.New("you have already reported this item")
	ErrWrongState      = errors.New("item is not in the required state")
	ErrMissingAnswer   = errors.New("an answer to the security question is required")
	ErrMissingProof    = errors.New("a description of the item is required")
	ErrHolderMismatch  = errors.New("handoff code was issued for a different claim")
	ErrUnknownEvent    = errors.New("unknown event")
)

// StateError is returned when an event is not allowed from the item's
// current status. It matches ErrWrongState.
type StateError struct {
	Event  Event
	Status model.Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s an item that is %s", e.Event, e.Status)
}

func (e *StateError) Is(target error) bool {
	return target == ErrWrongState
}

// Request carries the actor and the event payload.
type Request struct {
	Event     Event
	ActorID   string
	ActorName string

	// Claim payload.
	Proof  *model.ClaimProof
	Answer string

	// Redeem payload: the claimant the handoff code was issued to.
	Holder string

	Now time.Time
}

// Notice is a notification a transition owes to one user.
type Notice struct {
	Recipient string
	Type      model.NotificationType
}

// Decision is the outcome of a permitted event.
type Decision struct {
	Event Event
	From  model.Status
	To    model.Status

	// Remove is set for delete: the item leaves the store.
	Remove bool
	// AddReporter is set for report: the actor joins the reporter set and
	// Hidden is the resulting flag.
	AddReporter bool
	Hidden      bool

	Notify    []Notice
	Celebrate bool
}

// Changes reports whether the decision moves the item to another status.
func (d Decision) Changes() bool {
	return d.From != d.To
}

// Decide checks whether req may be applied to item and describes the result.
func Decide(item model.Item, req Request) (Decision, error) {
	d := Decision{Event: req.Event, From: item.Status, To: item.Status}
	actor := req.ActorID

	switch req.Event {
	case EventClaim:
		if item.IsOwner(actor) {
			return d, ErrSelfClaim
		}
		if item.Status != model.StatusFound {
			return d, wrongState(req.Event, item.Status)
		}
		if req.Proof == nil || strings.TrimSpace(req.Proof.Description) == "" {
			return d, ErrMissingProof
		}
		if item.HasSecurityQuestion() {
			if strings.TrimSpace(req.Answer) == "" {
				return d, ErrMissingAnswer
			}
			d.To = model.StatusPendingApproval
			d.Notify = []Notice{{item.ReporterID, model.NotifyClaimRequest}}
		} else {
			d.To = model.StatusClaimed
			d.Notify = []Notice{{item.ReporterID, model.NotifyClaimAlert}}
		}

	case EventApprove, EventReject:
		if !item.IsOwner(actor) {
			return d, ErrNotOwner
		}
		if item.Status != model.StatusPendingApproval {
			return d, wrongState(req.Event, item.Status)
		}
		if req.Event == EventApprove {
			d.To = model.StatusClaimed
			d.Notify = []Notice{{item.ClaimantID, model.NotifyClaimApproved}}
		} else {
			d.To = model.StatusFound
		}

	case EventVerify:
		if !item.IsOwner(actor) {
			return d, ErrNotOwner
		}
		if item.Status != model.StatusClaimed {
			return d, wrongState(req.Event, item.Status)
		}
		d.To = model.StatusVerified

	case EventRedeem:
		if !item.IsOwner(actor) {
			return d, ErrNotOwner
		}
		if item.Status != model.StatusVerified {
			return d, wrongState(req.Event, item.Status)
		}
		if req.Holder != item.ClaimantID {
			return d, ErrHolderMismatch
		}
		d.To = model.StatusReturned
		d.Celebrate = true

	case EventDelete:
		if !item.IsOwner(actor) {
			return d, ErrNotOwner
		}
		if item.Status == model.StatusReturned {
			return d, wrongState(req.Event, item.Status)
		}
		d.Remove = true

	case EventReport:
		if item.IsOwner(actor) {
			return d, ErrOwnReport
		}
		if item.Status == model.StatusReturned {
			return d, wrongState(req.Event, item.Status)
		}
		if item.HasReported(actor) {
			return d, ErrAlreadyReported
		}
		d.AddReporter = true
		d.Hidden = moderation.ShouldHide(len(item.ReportedBy) + 1)

	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownEvent, req.Event)
	}

	return d, nil
}

// Apply returns a copy of item with the decision's changes made.
// The input item is not modified.
func Apply(item model.Item, d Decision, req Request) model.Item {
	next := item.Clone()
	now := req.Now

	switch d.Event {
	case EventClaim:
		next.ClaimantID = req.ActorID
		next.ClaimantName = req.ActorName
		proof := *req.Proof
		next.ClaimProof = &proof
		if item.HasSecurityQuestion() {
			next.ClaimantAnswer = strings.TrimSpace(req.Answer)
		}
		next.ClaimedAt = &now
	case EventReject:
		next.ClaimantID = ""
		next.ClaimantName = ""
		next.ClaimProof = nil
		next.ClaimantAnswer = ""
		next.ClaimedAt = nil
	case EventRedeem:
		next.ReturnedAt = &now
	case EventReport:
		next.ReportedBy = append(next.ReportedBy, req.ActorID)
		next.Hidden = d.Hidden
	}

	next.Status = d.To
	if d.Changes() {
		next.UpdatedAt = now
	}
	return next
}

// Validate checks the structural invariants of an item.
func Validate(item model.Item) error {
	if !item.Status.Valid() {
		return fmt.Errorf("unknown status %q", item.Status)
	}
	if item.Status.HasClaimant() != (item.ClaimantID != "") {
		return fmt.Errorf("status %s with claimant %q", item.Status, item.ClaimantID)
	}
	if item.ClaimantAnswer != "" && !item.HasSecurityQuestion() {
		return errors.New("claimant answer without a security question")
	}
	if item.ClaimantID != "" && item.ClaimantID == item.ReporterID {
		return errors.New("owner is the claimant")
	}
	return nil
}

// CanChat reports whether actorID may read and write the item's chat.
func CanChat(item model.Item, actorID string) bool {
	if item.Status != model.StatusClaimed && item.Status != model.StatusVerified {
		return false
	}
	return item.IsOwner(actorID) || item.IsClaimant(actorID)
}

// AuthorizeHandoff checks that actorID may show a handoff code for item.
func AuthorizeHandoff(item model.Item, actorID string) error {
	if !item.IsClaimant(actorID) {
		return ErrNotClaimant
	}
	if item.Status != model.StatusVerified {
		return wrongState("hand off", item.Status)
	}
	return nil
}

func wrongState(e Event, s model.Status) error {
	return &StateError{Event: e, Status: s}
}
