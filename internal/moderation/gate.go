package moderation

import (
	"context"
	"fmt"
	"log/slog"
)

// Rejection explains why a post was refused.
type Rejection struct {
	Field  string `json:"field"`
	Term   string `json:"term,omitempty"`
	Reason string `json:"reason"`
}

func (r *Rejection) Error() string {
	if r.Term != "" {
		return fmt.Sprintf("%s: %s (%q)", r.Field, r.Reason, r.Term)
	}
	return fmt.Sprintf("%s: %s", r.Field, r.Reason)
}

// Submission is the moderated part of a new post.
type Submission struct {
	Title       string
	Description string
	Photo       []byte
}

// Result is an accepted submission.
type Result struct {
	Verdict     Verdict
	NeedsReview bool
}

// Gate runs the text and photo checks on new posts.
type Gate struct {
	policy     Policy
	classifier Classifier
}

// NewGate returns a gate. A nil classifier skips photo scoring.
func NewGate(policy Policy, classifier Classifier) (*Gate, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Gate{policy: policy, classifier: classifier}, nil
}

// Policy returns the gate's policy.
func (g *Gate) Policy() *Policy {
	return &g.policy
}

// Submit checks a submission. A refusal is returned as a *Rejection.
// Classifier failures do not block the post.
func (g *Gate) Submit(ctx context.Context, s Submission) (Result, error) {
	if term := g.policy.Offending(s.Title); term != "" {
		return Result{}, &Rejection{Field: "title", Term: term, Reason: "inappropriate language"}
	}
	if term := g.policy.Offending(s.Description); term != "" {
		return Result{}, &Rejection{Field: "description", Term: term, Reason: "inappropriate language"}
	}
	if len(s.Photo) == 0 {
		return Result{}, &Rejection{Field: "photo", Reason: "photo proof is mandatory"}
	}

	if g.classifier == nil {
		return Result{Verdict: VerdictUnscored}, nil
	}
	preds, err := g.classifier.Classify(ctx, s.Photo)
	if err != nil {
		slog.Warn("photo classification failed, accepting unscored", "error", err)
		return Result{Verdict: VerdictUnscored}, nil
	}

	v := g.policy.Judge(preds)
	switch v {
	case VerdictUnsafe:
		return Result{}, &Rejection{Field: "photo", Reason: "content detected as inappropriate"}
	case VerdictReview:
		return Result{Verdict: v, NeedsReview: true}, nil
	}
	return Result{Verdict: v}, nil
}
