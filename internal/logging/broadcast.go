package logging

import (
	"container/ring"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultBufferSize is the number of recent log lines LogBroadcaster
// keeps for late subscribers (e.g. a bridge client that connects after
// startup).
const DefaultBufferSize = 200

// broadcastWarnWriter receives the "a subscriber is too slow, dropping
// its line" diagnostic; swappable in tests.
var broadcastWarnWriter io.Writer = os.Stderr

// LogBroadcaster fans every written line out to subscriber channels in
// addition to recent-history buffering, without ever blocking the
// underlying zerolog writer on a slow reader.
type LogBroadcaster struct {
	mu          sync.Mutex
	buffer      *ring.Ring
	subscribers map[string]chan string
}

// NewLogBroadcaster creates a broadcaster with the given history size.
func NewLogBroadcaster(bufferSize int) *LogBroadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &LogBroadcaster{
		buffer:      ring.New(bufferSize),
		subscribers: make(map[string]chan string),
	}
}

// Write implements io.Writer. It never blocks: a subscriber whose
// channel is full has its line dropped with a warning instead of
// stalling every other writer.
func (b *LogBroadcaster) Write(p []byte) (int, error) {
	line := string(p)

	b.mu.Lock()
	b.buffer.Value = line
	b.buffer = b.buffer.Next()
	subscribers := make(map[string]chan string, len(b.subscribers))
	for id, ch := range b.subscribers {
		subscribers[id] = ch
	}
	b.mu.Unlock()

	for id, ch := range subscribers {
		select {
		case ch <- line:
		default:
			fmt.Fprintf(broadcastWarnWriter, "reason=subscriber_blocked subscriber_id=%s action=drop_message\n", id)
		}
	}
	return len(p), nil
}

// Subscribe registers a new subscriber and returns its channel and the
// currently buffered history, oldest first.
func (b *LogBroadcaster) Subscribe(id string) (<-chan string, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan string, DefaultBufferSize)
	b.subscribers[id] = ch

	var history []string
	b.buffer.Do(func(v any) {
		if v == nil {
			return
		}
		if s, ok := v.(string); ok {
			history = append(history, s)
		}
	})
	return ch, history
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *LogBroadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}
