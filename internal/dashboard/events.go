package dashboard

import (
	"sync"
	"time"

	"github.com/batfish/batfish-sub054/internal/snapshot"
)

const maxRecentEvents = 500

// Event types broadcast to dashboard clients.
const (
	EventConnected    = "connected"
	EventRunStarted   = "run.started"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// Event is one message on the live feed.
type Event struct {
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id,omitempty"`
	SnapshotDir string    `json:"snapshot_dir,omitempty"`
	Status      string    `json:"status,omitempty"`
	Error       string    `json:"error,omitempty"`
	Data        any       `json:"data,omitempty"`
}

// Emitter records run lifecycle events and forwards them to the hub.
// It is safe to use from multiple goroutines.
type Emitter struct {
	mu     sync.Mutex
	hub    *Hub
	recent []Event
	now    func() time.Time
}

// NewEmitter creates an emitter broadcasting on hub. A nil hub only
// records events.
func NewEmitter(hub *Hub) *Emitter {
	return &Emitter{hub: hub, now: time.Now}
}

// RunStarted announces that processing of snapshotDir began.
func (e *Emitter) RunStarted(snapshotDir string) {
	e.emit(Event{Type: EventRunStarted, SnapshotDir: snapshotDir})
}

// RunCompleted announces a stored run. The summary travels as Data.
func (e *Emitter) RunCompleted(run *snapshot.Run) {
	if run == nil {
		return
	}
	e.emit(Event{
		Type:        EventRunCompleted,
		RunID:       run.ID,
		SnapshotDir: run.SnapshotDir,
		Status:      run.Status,
		Data:        run.Summary(),
	})
}

// RunFailed announces that snapshotDir could not be processed at all.
func (e *Emitter) RunFailed(snapshotDir string, err error) {
	ev := Event{Type: EventRunFailed, SnapshotDir: snapshotDir, Status: snapshot.StatusFailed}
	if err != nil {
		ev.Error = err.Error()
	}
	e.emit(ev)
}

// Recent returns up to limit of the latest events, newest first.
func (e *Emitter) Recent(limit int) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 || limit > len(e.recent) {
		limit = len(e.recent)
	}
	out := make([]Event, 0, limit)
	for i := len(e.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

func (e *Emitter) emit(ev Event) {
	ev.Timestamp = e.now()

	e.mu.Lock()
	e.recent = append(e.recent, ev)
	if len(e.recent) > maxRecentEvents {
		// drop the oldest tenth to avoid shifting on every event
		drop := len(e.recent) - maxRecentEvents + maxRecentEvents/10
		e.recent = append(e.recent[:0], e.recent[drop:]...)
	}
	e.mu.Unlock()

	if e.hub != nil {
		e.hub.Broadcast(&ev)
	}
}
