package usagelog

import (
	"context"
	"log"
	"time"

	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

// Store is the append-only sink for usage entries.
type Store interface {
	RecordUsage(ctx context.Context, entry *models.UsageLog) error
}

// Logger writes usage entries off the request path. Enqueue never blocks the
// caller; entries are drained by a single background worker. On shutdown,
// Close attempts a bounded drain so buffered entries are not silently lost.
type Logger struct {
	store   Store
	entries chan *models.UsageLog
	done    chan struct{}
}

func New(store Store, buffer int) *Logger {
	if buffer <= 0 {
		buffer = 1024
	}
	l := &Logger{
		store:   store,
		entries: make(chan *models.UsageLog, buffer),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.store.RecordUsage(ctx, entry); err != nil {
			log.Printf("failed to record usage for key %s: %v", entry.APIKeyID, err)
		}
		cancel()
	}
}

// Enqueue submits an entry without blocking. When the buffer is full the
// entry is dropped; usage logging is best-effort by contract.
func (l *Logger) Enqueue(entry *models.UsageLog) {
	select {
	case l.entries <- entry:
	default:
		log.Printf("usage log buffer full, dropping entry for key %s", entry.APIKeyID)
	}
}

// Close stops intake and waits for the worker to drain buffered entries or
// for ctx to expire, whichever comes first.
func (l *Logger) Close(ctx context.Context) error {
	close(l.entries)
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
