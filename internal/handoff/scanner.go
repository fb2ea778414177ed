package handoff

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrScannerStopped is returned for codes decoded after a successful return
// or while a redeem is in progress.
var ErrScannerStopped = errors.New("scanner is stopped")

// Camera is the finder's capture device.
type Camera interface {
	Stop() error
	Start() error
}

// RedeemFunc completes the return for a validated token.
type RedeemFunc func(ctx context.Context, t Token) error

// Scanner handles codes decoded by the finder's camera.
type Scanner struct {
	codec  *Codec
	camera Camera
	redeem RedeemFunc
	now    func() time.Time

	mu      sync.Mutex
	stopped bool
	err     error
}

// NewScanner returns an active scanner. A nil now uses time.Now.
func NewScanner(codec *Codec, camera Camera, redeem RedeemFunc, now func() time.Time) *Scanner {
	if now == nil {
		now = time.Now
	}
	return &Scanner{codec: codec, camera: camera, redeem: redeem, now: now}
}

// HandleDecoded validates decoded text. A bad or expired code is reported
// and the scanner stays active. A good code stops the camera and redeems;
// a camera that fails to stop is logged and redemption goes ahead. If the
// redeem fails the camera is started again and the scanner accepts the
// next code.
func (s *Scanner) HandleDecoded(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrScannerStopped
	}
	t, err := s.codec.Validate(text, s.now())
	if err != nil {
		s.err = err
		s.mu.Unlock()
		return err
	}
	s.stopped = true
	s.err = nil
	s.mu.Unlock()

	if err := s.camera.Stop(); err != nil {
		slog.Warn("stopping camera failed, redeeming anyway", "item_id", t.ItemID, "error", err)
	}

	if err := s.redeem(ctx, t); err != nil {
		if serr := s.camera.Start(); serr != nil {
			slog.Warn("restarting camera failed", "item_id", t.ItemID, "error", serr)
		}
		s.mu.Lock()
		s.stopped = false
		s.err = err
		s.mu.Unlock()
		return err
	}
	return nil
}

// Active reports whether the scanner still accepts codes.
func (s *Scanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// Err returns the last error shown to the finder.
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Retry clears the last error.
func (s *Scanner) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}
