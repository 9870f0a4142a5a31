package draft

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Persister writes the current draft
type Persister interface {
	Persist(ctx context.Context)
}

// Autosaver persists the draft on a fixed interval and on demand
type Autosaver struct {
	target   Persister
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutosaver creates an autosaver. A zero interval disables the ticker;
// Flush still works.
func NewAutosaver(target Persister, interval time.Duration, logger *slog.Logger) *Autosaver {
	return &Autosaver{
		target:   target,
		interval: interval,
		log:      logger,
	}
}

// Start launches the ticker loop. Calling Start twice is a no-op.
func (a *Autosaver) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil || a.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go a.loop(ctx, a.done)
	a.log.Debug("Autosave started", "interval", a.interval)
}

func (a *Autosaver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.target.Persist(context.WithoutCancel(ctx))
		}
	}
}

// Flush persists immediately. It is called on shutdown signals.
func (a *Autosaver) Flush(ctx context.Context) {
	a.target.Persist(ctx)
	a.log.Debug("Draft flushed")
}

// Stop ends the ticker loop and waits for it to exit
func (a *Autosaver) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.log.Debug("Autosave stopped")
}
