// Package notify delivers transient user-facing notifications (login
// failures, profile/company update results) to dashboard clients.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/ids"
)

// Level classifies a notice for frontend rendering.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a single transient notification.
type Notice struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is the sink the session and company layers publish through.
type Notifier interface {
	Notify(level Level, message string)
}

// Stream fan-outs notices to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Notice
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Notice)}
}

var _ Notifier = (*Stream)(nil)

// Notify publishes a notice built from level and message.
func (s *Stream) Notify(level Level, message string) {
	s.Publish(Notice{
		ID:      ids.New(),
		Level:   level,
		Message: message,
		At:      time.Now().UTC(),
	})
}

// Subscribe registers a subscriber and returns a channel which will receive
// notices. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Notice {
	ch := make(chan Notice, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the notice to all subscribers.
func (s *Stream) Publish(n Notice) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Discard is a Notifier that drops everything. Useful for the CLI and tests
// that do not assert on notifications.
type Discard struct{}

func (Discard) Notify(Level, string) {}
