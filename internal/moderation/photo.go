package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/erazemk/najdeno/internal/imaging"
)

// Prediction is one label score from a content classifier.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Classifier scores a photo.
type Classifier interface {
	Classify(ctx context.Context, photo []byte) ([]Prediction, error)
}

// Verdict is the photo check outcome.
type Verdict string

// Photo verdicts.
const (
	VerdictSafe     Verdict = "safe"
	VerdictReview   Verdict = "needs_review"
	VerdictUnsafe   Verdict = "unsafe"
	VerdictUnscored Verdict = "unscored"
)

// Judge maps classifier output to a verdict using the unsafe labels and
// thresholds. Labels not listed are ignored.
func (p *Policy) Judge(preds []Prediction) Verdict {
	var worst float64
	for _, pr := range preds {
		if slices.Contains(p.UnsafeLabels, pr.Label) {
			worst = max(worst, pr.Probability)
		}
	}
	switch {
	case worst > p.RejectThreshold:
		return VerdictUnsafe
	case worst > p.ReviewThreshold:
		return VerdictReview
	default:
		return VerdictSafe
	}
}

// HTTPClassifier posts a square JPEG thumbnail to a classification
// endpoint and reads back a JSON array of predictions.
type HTTPClassifier struct {
	URL    string
	Client *http.Client
}

// NewHTTPClassifier returns a classifier calling url with the given timeout.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Classify implements Classifier.
func (c *HTTPClassifier) Classify(ctx context.Context, photo []byte) ([]Prediction, error) {
	thumb, err := imaging.Thumbnail(photo, imaging.ClassifierSize)
	if err != nil {
		return nil, fmt.Errorf("preparing thumbnail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(thumb))
	if err != nil {
		return nil, fmt.Errorf("building classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var preds []Prediction
	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return nil, fmt.Errorf("decoding classifier response: %w", err)
	}
	return preds, nil
}
