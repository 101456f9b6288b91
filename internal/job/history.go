package job

import (
	"context"
	"log/slog"
	"sync"
)

// History is a slog.Handler that buffers records so a job's log lines can
// be replayed as one block when its result is applied.
type History struct {
	store  *recordStore
	target slog.Handler
	// frames[0] holds attrs added outside any group; each WithGroup opens
	// a new frame.
	frames []frame
}

type frame struct {
	group string
	attrs []slog.Attr
}

type recordStore struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewHistory returns a buffering handler whose level filtering follows
// target.
func NewHistory(target slog.Handler) *History {
	return &History{store: &recordStore{}, target: target, frames: []frame{{}}}
}

// Logger returns a logger writing into h.
func (h *History) Logger() *slog.Logger { return slog.New(h) }

func (h *History) Enabled(ctx context.Context, level slog.Level) bool {
	return h.target.Enabled(ctx, level)
}

func (h *History) Handle(_ context.Context, r slog.Record) error {
	rec := r.Clone()
	if len(h.frames) > 1 || len(h.frames[0].attrs) > 0 {
		var attrs []slog.Attr
		r.Attrs(func(a slog.Attr) bool {
			attrs = append(attrs, a)
			return true
		})
		for i := len(h.frames) - 1; i >= 0; i-- {
			f := h.frames[i]
			inner := append(append([]slog.Attr(nil), f.attrs...), attrs...)
			switch {
			case f.group == "":
				attrs = inner
			case len(inner) == 0:
				attrs = nil
			default:
				attrs = []slog.Attr{{Key: f.group, Value: slog.GroupValue(inner...)}}
			}
		}
		rec = slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
		rec.AddAttrs(attrs...)
	}
	h.store.mu.Lock()
	h.store.records = append(h.store.records, rec)
	h.store.mu.Unlock()
	return nil
}

func (h *History) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	c.frames = append([]frame(nil), h.frames...)
	last := &c.frames[len(c.frames)-1]
	last.attrs = append(append([]slog.Attr(nil), last.attrs...), attrs...)
	return &c
}

func (h *History) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.frames = append(append([]frame(nil), h.frames...), frame{group: name})
	return &c
}

// Len returns the number of buffered records.
func (h *History) Len() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.records)
}

// Replay writes every buffered record to logger in the order logged.
func (h *History) Replay(ctx context.Context, logger *slog.Logger) {
	h.store.mu.Lock()
	records := h.store.records
	h.store.mu.Unlock()
	handler := logger.Handler()
	for _, r := range records {
		if handler.Enabled(ctx, r.Level) {
			_ = handler.Handle(ctx, r)
		}
	}
}
