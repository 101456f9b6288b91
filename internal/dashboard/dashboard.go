package dashboard

import (
	"log/slog"

	"github.com/batfish/batfish-sub054/internal/snapshot"
)

// Dashboard ties together the run browser and its live event feed.
type Dashboard struct {
	Server  *Server
	Hub     *Hub
	Emitter *Emitter
}

// New creates a fully wired dashboard over store.
func New(config *Config, store *snapshot.Store, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	hub := NewHub()
	emitter := NewEmitter(hub)
	server := NewServer(config, store, emitter, hub, logger)

	return &Dashboard{
		Server:  server,
		Hub:     hub,
		Emitter: emitter,
	}
}
