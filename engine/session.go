package engine

import (
	"time"

	"notesync/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohanthewiz/logger"
)

// ============================================================================
// Session Transitions
//
// Gaining a token enables scheduling (with an immediate attempt). Losing it
// disables scheduling and collapses every item to a disconnected, purely
// local state: items with nothing pending are dropped, never-synced items
// stay as they are, and items that were linked to the server are demoted —
// re-minted under a fresh local id with the server identity severed, so a
// future sync creates them anew instead of colliding with stale state.
// ============================================================================

// SetToken installs a bearer credential and starts syncing. An empty token
// is a logout.
func (e *SyncEngine) SetToken(token string) {
	if token == "" {
		e.ClearToken()
		return
	}
	e.mu.Lock()
	e.token = token
	e.mu.Unlock()
	e.Enable()
}

// Token returns the current bearer credential, empty when logged out.
func (e *SyncEngine) Token() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// ClearToken ends the session: scheduling stops and the working list
// collapses to local-only state.
func (e *SyncEngine) ClearToken() {
	e.Disable()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.token = ""
	e.collapseLocked()
}

// collapseLocked rewrites the working list for a disconnected session.
// Caller holds e.mu.
func (e *SyncEngine) collapseLocked() {
	kept := make([]string, 0, len(e.list))
	for _, id := range e.list {
		newID, err := e.collapseItem(id)
		if err != nil {
			// Keep the item untouched rather than risk losing edits.
			logger.LogErr(err, "failed to collapse item; keeping as-is", "id", id)
			kept = append(kept, id)
			continue
		}
		if newID != "" {
			kept = append(kept, newID)
		}
	}
	e.list = models.NormalizeList(kept)
	if err := models.SaveList(e.store, e.list); err != nil {
		logger.LogErr(err, "failed to persist working list after collapse")
	}
	logger.Info("Session ended; collapsed working list", "items", len(e.list))
}

// collapseItem reduces one item to its offline form. Returns the id the
// item survives under, or "" when it is dropped.
func (e *SyncEngine) collapseItem(id string) (string, error) {
	local, err := models.LoadLocal(e.store, id)
	if err != nil {
		return "", err
	}

	if local != nil && local.Version > 0 && local.Value != nil {
		remote, err := models.LoadRemote(e.store, id)
		if err != nil {
			return "", err
		}
		if remote == nil {
			// Never linked to the server; already purely local.
			return id, nil
		}

		// Demote: detach from the prior server identity. The new id embeds
		// the local version so re-minting is collision-free, and the reset
		// base version makes the next sync treat it as a brand-new item.
		newID := models.MintLocalIDFromVersion(local.Version)
		rec := &models.LocalRecord{BaseVersion: 0, Version: local.Version, Value: local.Value}
		if err := models.SaveLocal(e.store, newID, rec); err != nil {
			return "", err
		}
		if err := models.DeleteRemote(e.store, id); err != nil {
			return "", err
		}
		if err := models.DeleteLocal(e.store, id); err != nil {
			return "", err
		}
		delete(e.items, id)
		e.items[newID] = models.NewNoteItem(e.store, newID, e.cfg.MsgpackValues)
		logger.Info("Item demoted to local", "old_id", id, "new_id", newID, "ver", local.Version)
		return newID, nil
	}

	// No unsynced content worth keeping offline.
	if err := models.DeleteRemote(e.store, id); err != nil {
		return "", err
	}
	if err := models.DeleteLocal(e.store, id); err != nil {
		return "", err
	}
	delete(e.items, id)
	return "", nil
}

// tokenExpired inspects a JWT's exp claim without verifying the signature —
// the server is the authority, this only saves a doomed round trip. Opaque
// (non-JWT) credentials always pass through to the server.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}
