package web

import (
	"notesync/engine"
	"notesync/web/api"
	"notesync/web/pages"

	"github.com/rohanthewiz/rweb"
)

// setupRoutes configures the control-surface routes.
func setupRoutes(s *rweb.Server, eng *engine.SyncEngine) {
	h := api.NewHandlers(eng)

	// Status page - HTML response
	s.Get("/", func(ctx rweb.Context) error {
		ctx.Response().SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.WriteHTML(pages.StatusPage{Status: eng.Status()}.Render())
	})

	// Sync control
	s.Get("/api/v1/sync/status", h.SyncStatus)     // Status for the UI indicator
	s.Post("/api/v1/sync/now", h.SyncNow)          // Manual sync, bypasses debounce
	s.Post("/api/v1/sync/enable", h.SyncEnable)    // Resume scheduling
	s.Post("/api/v1/sync/disable", h.SyncDisable)  // Pause scheduling, keep session

	// Session lifecycle
	s.Put("/api/v1/session", h.SetSession)       // Install a bearer token, enables sync
	s.Delete("/api/v1/session", h.ClearSession)  // Logout: disable + collapse to local

	// Item operations
	s.Get("/api/v1/items", h.ListItems)          // Working list with display values
	s.Post("/api/v1/items", h.CreateItem)        // Mint a new local item
	s.Put("/api/v1/items/:id", h.UpdateItem)     // Store a new value, bump version
	s.Delete("/api/v1/items/:id", h.DeleteItem)  // Tombstone (or drop if never synced)
}
