package engine

import (
	"context"
	"sync"
	"time"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Engine
//
// One owned instance ties the pieces together: the durable store, the item
// arena (id → controller), the working list, the scheduler and the
// transport. All list and arena mutations happen under mu, so reconciliation
// is atomic relative to user edits; at most one sync attempt is in flight at
// a time (syncMu).
// ============================================================================

// SyncEngine owns the working list and drives synchronization.
type SyncEngine struct {
	cfg       *Config
	store     models.Store
	transport Transport
	clock     Clock
	status    *Status
	notices   *Notices

	mu         sync.Mutex // guards list, items, token, enabled, next
	items      map[string]models.Controller
	list       []string
	token      string
	enabled    bool
	next       time.Time
	loopCancel context.CancelFunc

	syncMu sync.Mutex // held for the duration of one sync attempt
}

// NewSyncEngine builds an engine over the given collaborators and restores
// the working list from the store. A nil clock means wall time.
func NewSyncEngine(cfg *Config, store models.Store, transport Transport, clock Clock) (*SyncEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, serr.Wrap(err, "invalid engine config")
	}
	if clock == nil {
		clock = NewClock()
	}

	e := &SyncEngine{
		cfg:       cfg,
		store:     store,
		transport: transport,
		clock:     clock,
		status:    NewStatus(clock),
		notices:   NewNotices(clock, noticeDisplayTime),
		items:     make(map[string]models.Controller),
	}

	ids, err := models.LoadList(store)
	if err != nil {
		return nil, serr.Wrap(err, "failed to restore working list")
	}
	e.list = models.NormalizeList(ids)
	for _, id := range e.list {
		e.items[id] = models.NewNoteItem(store, id, cfg.MsgpackValues)
	}
	if len(e.list) > 0 {
		logger.Info("Restored working list", "items", len(e.list))
	}

	return e, nil
}

// StatusTracker returns the status collaborator (last-sync time, syncing
// flag) that the rate guard consults.
func (e *SyncEngine) StatusTracker() *Status { return e.status }

// Notices returns the transient-message display.
func (e *SyncEngine) Notices() *Notices { return e.notices }

// EngineStatus is the control-surface snapshot of the engine.
type EngineStatus struct {
	Enabled   bool       `json:"enabled"`
	Syncing   bool       `json:"syncing"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
	Failures  int        `json:"failures,omitempty"`
	Notice    string     `json:"notice,omitempty"`
	ItemCount int        `json:"item_count"`
}

// Status returns a snapshot for the UI.
func (e *SyncEngine) Status() EngineStatus {
	e.mu.Lock()
	st := EngineStatus{
		Enabled:   e.enabled,
		ItemCount: len(e.list),
	}
	e.mu.Unlock()

	st.Syncing = e.status.Syncing()
	st.Failures = e.status.Failures()
	st.Notice = e.notices.Current()
	if last := e.status.LastSync(); !last.IsZero() {
		st.LastSync = &last
	}
	return st
}

// ItemView is one entry of the list as the UI sees it: the local value when
// edits are pending, the remote value otherwise.
type ItemView struct {
	ID      string  `json:"id"`
	Value   *string `json:"val"`
	Pending bool    `json:"pending"`
}

// Items returns the working list with resolved display values.
func (e *SyncEngine) Items() ([]ItemView, error) {
	e.mu.Lock()
	ids := make([]string, len(e.list))
	copy(ids, e.list)
	e.mu.Unlock()

	views := make([]ItemView, 0, len(ids))
	for _, id := range ids {
		local, err := models.LoadLocal(e.store, id)
		if err != nil {
			return nil, err
		}
		view := ItemView{ID: id}
		if local != nil {
			view.Value = local.Value
			view.Pending = local.Pending()
		}
		if view.Value == nil {
			remote, err := models.LoadRemote(e.store, id)
			if err != nil {
				return nil, err
			}
			if remote != nil {
				view.Value = remote.Value
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// CreateItem mints a fresh local item with an empty record, appends it to
// the working list and signals the scheduler.
func (e *SyncEngine) CreateItem() (string, error) {
	id := models.MintLocalID()
	if err := models.SaveLocal(e.store, id, &models.LocalRecord{}); err != nil {
		return "", serr.Wrap(err, "failed to create item record")
	}

	e.mu.Lock()
	e.items[id] = models.NewNoteItem(e.store, id, e.cfg.MsgpackValues)
	e.list = append(e.list, id)
	over := len(e.list) > e.cfg.MaxListLength
	hasToken := e.token != ""
	err := models.SaveList(e.store, e.list)
	if err != nil {
		// Keep memory and store in agreement: back out the append.
		delete(e.items, id)
		e.list = e.list[:len(e.list)-1]
	}
	e.mu.Unlock()

	if err != nil {
		return "", serr.Wrap(err, "failed to persist working list")
	}
	if over && hasToken {
		e.notices.Set(NoticeOverlength)
	}
	e.Op()
	return id, nil
}

// UpdateItem stores a new value for an item, bumping its local version, and
// signals the scheduler.
func (e *SyncEngine) UpdateItem(id, value string) error {
	e.mu.Lock()
	_, known := e.items[id]
	e.mu.Unlock()
	if !known {
		return serr.New("unknown item: " + id)
	}

	local, err := models.LoadLocal(e.store, id)
	if err != nil {
		return err
	}
	if local == nil {
		local = &models.LocalRecord{}
	}
	local.Value = &value
	local.Version++
	if err := models.SaveLocal(e.store, id, local); err != nil {
		return err
	}
	e.Op()
	return nil
}

// DeleteItem removes an item. A never-synced local item disappears
// immediately; anything the server has seen is tombstoned (nil value,
// bumped version) and leaves the list when the server confirms the
// deletion on a later cycle.
func (e *SyncEngine) DeleteItem(id string) error {
	e.mu.Lock()
	_, known := e.items[id]
	e.mu.Unlock()
	if !known {
		return serr.New("unknown item: " + id)
	}

	remote, err := models.LoadRemote(e.store, id)
	if err != nil {
		return err
	}

	if models.IsLocalID(id) && remote == nil {
		if err := models.DeleteLocal(e.store, id); err != nil {
			return err
		}
		e.mu.Lock()
		delete(e.items, id)
		kept := e.list[:0]
		for _, v := range e.list {
			if v != id {
				kept = append(kept, v)
			}
		}
		e.list = kept
		err = models.SaveList(e.store, e.list)
		e.mu.Unlock()
		return err
	}

	local, err := models.LoadLocal(e.store, id)
	if err != nil {
		return err
	}
	if local == nil {
		local = &models.LocalRecord{}
	}
	local.Value = nil
	local.Version++
	if err := models.SaveLocal(e.store, id, local); err != nil {
		return err
	}
	e.Op()
	return nil
}

// Close stops scheduling. An in-flight attempt still completes.
func (e *SyncEngine) Close() {
	e.Disable()
}
