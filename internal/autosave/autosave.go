// Package autosave collapses bursts of edit notifications into single
// debounced saves, one timer per project.
package autosave

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SaveFunc performs the actual save for a project.
type SaveFunc func(projectID string)

// Debouncer schedules a save after a quiet period. Each new notification
// for a project cancels and replaces its pending save: last-scheduled-wins,
// saves never stack.
type Debouncer struct {
	window time.Duration
	save   SaveFunc
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer firing save after window of quiet.
func NewDebouncer(window time.Duration, save SaveFunc, logger zerolog.Logger) *Debouncer {
	return &Debouncer{
		window:  window,
		save:    save,
		logger:  logger.With().Str("component", "autosave").Logger(),
		pending: map[string]*time.Timer{},
	}
}

// Notify records an edit to the project, resetting its pending save.
func (d *Debouncer) Notify(projectID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.pending[projectID]; ok {
		t.Stop()
	}
	d.pending[projectID] = time.AfterFunc(d.window, func() {
		d.fire(projectID)
	})
}

func (d *Debouncer) fire(projectID string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, projectID)
	d.mu.Unlock()

	d.logger.Debug().Str("project_id", projectID).Msg("debounced save firing")
	d.save(projectID)
}

// Flush runs any pending save for the project immediately.
func (d *Debouncer) Flush(projectID string) {
	d.mu.Lock()
	t, ok := d.pending[projectID]
	if ok {
		t.Stop()
		delete(d.pending, projectID)
	}
	stopped := d.stopped
	d.mu.Unlock()

	if ok && !stopped {
		d.save(projectID)
	}
}

// Stop cancels all pending saves after running them. Further notifications
// are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	var ids []string
	for id, t := range d.pending {
		t.Stop()
		ids = append(ids, id)
	}
	d.pending = map[string]*time.Timer{}
	alreadyStopped := d.stopped
	d.stopped = true
	d.mu.Unlock()

	if alreadyStopped {
		return
	}
	for _, id := range ids {
		d.save(id)
	}
}
