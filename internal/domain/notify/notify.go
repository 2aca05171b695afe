// Package notify delivers status messages produced by domain operations.
// Delivery is fire-and-forget: the core never depends on a notification
// reaching anyone.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Category tags a notification for the presentation layer.
type Category string

const (
	CategoryOrder  Category = "order"
	CategoryCredit Category = "credit"
)

// Notification is a single message addressed to a member.
type Notification struct {
	MemberID string
	Text     string
	Category Category
	// OrderStatus carries the new order status for order notifications,
	// empty otherwise.
	OrderStatus string
}

// Notifier is the sink for notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	lg *zap.Logger
}

// NewLogNotifier returns a Notifier backed by the given logger.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) {
	n.lg.Info("notification",
		zap.String("member_id", msg.MemberID),
		zap.String("category", string(msg.Category)),
		zap.String("status", msg.OrderStatus),
		zap.String("text", msg.Text),
	)
}

// Recorder collects notifications in memory. Intended for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// ByCategory returns recorded notifications with the given category.
func (r *Recorder) ByCategory(c Category) []Notification {
	var out []Notification
	for _, n := range r.Sent() {
		if n.Category == c {
			out = append(out, n)
		}
	}
	return out
}
