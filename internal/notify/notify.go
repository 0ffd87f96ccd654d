// Package notify delivers rendered tracking notifications to the user-facing
// surfaces. Dispatchers hold no business logic.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"supernomad/internal/tracking/models"
)

const DefaultFeedSize = 100

type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// Feed keeps the most recent notifications in a ring buffer for clients that
// poll for toasts.
type Feed struct {
	mu    sync.RWMutex
	items []models.Notification
	next  int
	full  bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{items: make([]models.Notification, size)}
}

func (f *Feed) Dispatch(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
	return nil
}

// Recent returns up to limit notifications, newest first. A non-positive
// limit returns everything held.
func (f *Feed) Recent(limit int) []models.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.next
	if f.full {
		n = len(f.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out
}

// LogDispatcher writes notifications to the structured log.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	level := slog.LevelInfo
	switch n.Severity {
	case models.SeverityWarning, models.SeverityCritical:
		level = slog.LevelWarn
	}
	d.logger.Log(ctx, level, n.Title,
		"kind", n.Kind,
		"severity", n.Severity,
		"country", n.CountryCode,
		"description", n.Description,
	)
	return nil
}

// Multi fans a notification out to every dispatcher. All dispatchers are
// tried; their errors are joined.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
