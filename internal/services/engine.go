package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"cloudvps-backend/internal/models"
)

// Engine owns the application document. Every exported method takes the
// engine lock, so state transitions never interleave; the debounced
// persister and the broadcaster are told about each mutation.
type Engine struct {
	mu  sync.Mutex
	doc *models.Document

	store       DocumentStore
	persister   *Persister
	broadcaster Broadcaster
	edge        *EdgeClient

	now      func() time.Time
	rng      *rand.Rand
	delayMin time.Duration
	delayMax time.Duration

	provisionGen int64
	timers       map[string]*time.Timer
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = rng }
}

// WithSimulatedDelay sets the range of the fake network latency applied
// to tasks, offers and provisioning.
func WithSimulatedDelay(min, max time.Duration) EngineOption {
	return func(e *Engine) {
		e.delayMin = min
		e.delayMax = max
	}
}

func WithBroadcaster(b Broadcaster) EngineOption {
	return func(e *Engine) { e.broadcaster = b }
}

func WithEdgeClient(c *EdgeClient) EngineOption {
	return func(e *Engine) { e.edge = c }
}

func WithDebounce(d time.Duration) EngineOption {
	return func(e *Engine) { e.persister = NewPersister(e.store, d) }
}

// NewEngine loads and migrates the stored document.
func NewEngine(ctx context.Context, store DocumentStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:       store,
		broadcaster: noopBroadcaster{},
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		delayMin:    900 * time.Millisecond,
		delayMax:    1400 * time.Millisecond,
		timers:      make(map[string]*time.Timer),
	}
	e.persister = NewPersister(store, 220*time.Millisecond)
	for _, opt := range opts {
		opt(e)
	}
	e.persister.Bind(e.Snapshot)

	raw, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	e.doc = Migrate(raw, e.now())

	e.mu.Lock()
	e.resumeProvisioning()
	e.mu.Unlock()

	return e, nil
}

func (e *Engine) Persister() *Persister {
	return e.persister
}

// Snapshot serializes the document, stamping meta.updatedAt.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.doc.Meta.UpdatedAt = e.now().UnixMilli()
	return json.Marshal(e.doc)
}

// Close flushes pending writes and cancels provisioning timers.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	e.stopTimersLocked()
	e.mu.Unlock()

	e.persister.Flush(ctx)
}

// Export returns the whole document as indented JSON, credentials
// included. Only operators may reach it.
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.MarshalIndent(e.doc, "", "  ")
}

// Import migrates and replaces the whole document.
func (e *Engine) Import(raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return ErrInvalidDocument
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimersLocked()
	e.doc = Migrate(raw, e.now())
	e.resumeProvisioning()
	e.persister.MarkDirty()
	e.broadcastAll("import")
	return nil
}

// Reset wipes the stored document and starts over.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.Delete(ctx); err != nil {
		log.Printf("Failed to delete stored document: %v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	users := make([]string, 0, len(e.doc.Users))
	for id := range e.doc.Users {
		users = append(users, id)
	}

	e.stopTimersLocked()
	e.doc = models.DefaultDocument(e.now().UnixMilli())
	e.persister.MarkDirty()
	for _, id := range users {
		e.broadcaster.BroadcastStateUpdate(id, "reset")
	}
	return nil
}

// ExportUser returns a document holding only the caller's account and
// game state. The password hash and reset codes are left out.
func (e *Engine) ExportUser(userID string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	u := *e.doc.Users[userID]
	u.PassHash = ""

	nowMs := e.now().UnixMilli()
	out := models.Document{
		Version:  models.SchemaVersion,
		Users:    map[string]*models.User{userID: &u},
		Sessions: models.Sessions{CurrentUserID: userID},
		PerUser:  map[string]*models.UserGameState{userID: s},
		Meta: models.Meta{
			CreatedAt:   e.doc.Meta.CreatedAt,
			UpdatedAt:   nowMs,
			Prefs:       e.doc.Meta.Prefs,
			ResetTokens: map[string]models.ResetToken{},
		},
	}
	return json.MarshalIndent(out, "", "  ")
}

// ImportUser replaces the caller's game state with the one found in an
// exported document. The document must hold the caller's own state or
// exactly one user; accounts and credentials are never touched.
func (e *Engine) ImportUser(userID string, raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return ErrInvalidDocument
	}
	imported := Migrate(raw, e.now())

	sourceID := userID
	if _, ok := imported.Users[userID]; !ok {
		if len(imported.Users) != 1 {
			return ErrInvalidDocument
		}
		for id := range imported.Users {
			sourceID = id
		}
	}
	state := imported.PerUser[sourceID]
	if state == nil {
		return ErrInvalidDocument
	}
	state.RefCode = models.RefCode(userID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.state(userID); err != nil {
		return err
	}
	e.stopUserTimersLocked(userID)
	e.doc.PerUser[userID] = state
	e.normalizeDaily(state)
	e.resumeUserProvisioning(userID, state)
	e.commit(userID, "import")
	return nil
}

// ResetUser starts the caller's game state over. The account stays.
func (e *Engine) ResetUser(userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.state(userID); err != nil {
		return err
	}
	e.stopUserTimersLocked(userID)
	s := models.DefaultUserGameState(e.now())
	s.RefCode = models.RefCode(userID)
	e.doc.PerUser[userID] = s
	e.commit(userID, "reset")
	return nil
}

func (e *Engine) stopUserTimersLocked(userID string) {
	s, ok := e.doc.PerUser[userID]
	if !ok || s == nil {
		return
	}
	for _, inst := range s.Vps.Instances {
		if t, ok := e.timers[inst.ID]; ok {
			t.Stop()
			delete(e.timers, inst.ID)
		}
	}
}

func (e *Engine) stopTimersLocked() {
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) broadcastAll(reason string) {
	for id := range e.doc.Users {
		e.broadcaster.BroadcastStateUpdate(id, reason)
	}
}

// state returns the normalized per-user state. Callers hold e.mu.
func (e *Engine) state(userID string) (*models.UserGameState, error) {
	if _, ok := e.doc.Users[userID]; !ok {
		return nil, ErrNotSignedIn
	}
	s, ok := e.doc.PerUser[userID]
	if !ok || s == nil {
		s = models.DefaultUserGameState(e.now())
		e.doc.PerUser[userID] = s
	}
	if s.RefCode == "" {
		s.RefCode = models.RefCode(userID)
	}
	e.normalizeDaily(s)
	if s.Vps.SelectedID == "" && len(s.Vps.Instances) > 0 {
		s.Vps.SelectedID = s.Vps.Instances[0].ID
	}
	return s, nil
}

// commit marks the document dirty and tells listeners. Callers hold e.mu.
func (e *Engine) commit(userID, reason string) {
	e.persister.MarkDirty()
	e.broadcaster.BroadcastStateUpdate(userID, reason)
}

func (e *Engine) notify(userID string, s *models.UserGameState, kind, title, body string) {
	n := models.Notification{
		ID:    models.NewID("n"),
		TS:    e.now().UnixMilli(),
		Title: title,
		Body:  body,
		Kind:  kind,
	}
	s.PushNotification(n)
	e.broadcaster.BroadcastNotification(userID, n)
}

// simulateDelay sleeps for a random duration inside the configured range.
func (e *Engine) simulateDelay(ctx context.Context, extraMin, extraMax time.Duration) error {
	d := e.randomDelay(extraMin, extraMax)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) randomDelay(extraMin, extraMax time.Duration) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.randomDelayLocked(extraMin, extraMax)
}

func (e *Engine) randomDelayLocked(extraMin, extraMax time.Duration) time.Duration {
	if e.delayMax <= 0 {
		return 0
	}
	lo := e.delayMin + extraMin
	hi := e.delayMax + extraMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rng.Int63n(int64(hi-lo)+1))
}
