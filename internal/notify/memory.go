package notify

import (
	"context"
	"sync"

	"clearsky/internal/types"
)

var _ Sink = (*MemorySink)(nil)

// MemorySink records notifications in memory. It backs deployments without
// an outbound sink configured, where the log line from the Notifier is the
// only delivery, and doubles as a test double.
type MemorySink struct {
	mu        sync.Mutex
	delivered []types.AlertNotification
	cancelled []string
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Name identifies the sink in logs.
func (s *MemorySink) Name() string { return "memory" }

// Deliver records the notification.
func (s *MemorySink) Deliver(_ context.Context, n *types.AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, *n)
	return nil
}

// Cancel records the cancellation and drops any recorded notifications for
// the alert.
func (s *MemorySink) Cancel(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, alertID)
	kept := s.delivered[:0]
	for _, n := range s.delivered {
		if n.AlertID != alertID {
			kept = append(kept, n)
		}
	}
	s.delivered = kept
	return nil
}

// Delivered returns a copy of the recorded notifications.
func (s *MemorySink) Delivered() []types.AlertNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AlertNotification, len(s.delivered))
	copy(out, s.delivered)
	return out
}

// Cancelled returns a copy of the recorded cancellation alert IDs.
func (s *MemorySink) Cancelled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cancelled))
	copy(out, s.cancelled)
	return out
}
