package web

import (
	"notesync/engine"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// NewServer creates and configures the control-surface server. It exposes
// the engine's status, session and item operations to a local UI.
func NewServer(addr string, eng *engine.SyncEngine) *rweb.Server {
	s := rweb.NewServer(rweb.ServerOptions{
		Address: addr,
		Verbose: false,
	})

	s.Use(rweb.RequestInfo)

	setupRoutes(s, eng)

	return s
}

// Run starts the server.
func Run(s *rweb.Server) error {
	logger.Info("notesync control surface starting")
	return s.Run()
}
