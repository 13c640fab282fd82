package app

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Detached runs collaborator work off the caller's critical path.
// A panicking task is logged and contained; it never reaches the caller.
type Detached struct {
	mu     sync.Mutex
	closed bool
	wg     conc.WaitGroup
}

// Go starts fn unless the runner is closed, and reports whether it did.
func (d *Detached) Go(task string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Warn().Str("module", "app.tasks").Str("task", task).Msg("detached task refused after close")
		return false
	}
	d.wg.Go(func() {
		var pc panics.Catcher
		pc.Try(fn)
		if r := pc.Recovered(); r != nil {
			log.Error().Str("module", "app.tasks").Str("task", task).Interface("panic", r.Value).Msg("detached task panicked")
		}
	})
	return true
}

// Wait blocks until every task started so far has returned.
// Callers must not start tasks concurrently with Wait; use Close for that.
func (d *Detached) Wait() {
	d.wg.Wait()
}

// Close refuses further tasks, then waits for the running ones.
func (d *Detached) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
