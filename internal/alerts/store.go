package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// StoreHooks lets callers observe store activity without coupling the store
// to a metrics backend. Nil fields are skipped.
type StoreHooks struct {
	OnChange  func(s *State)
	OnPersist func(err error, duration time.Duration)
}

// Store owns the canonical alert state. All mutations are serialized by one
// lock, published to subscribers, and persisted asynchronously through the
// KV port.
type Store struct {
	mu    sync.RWMutex
	state State

	kv     KV
	key    string
	ids    IDFunc
	clock  Clock
	logger log.Logger
	hooks  StoreHooks

	dirty chan struct{}

	subMu  sync.Mutex
	subs   map[int]chan State
	nextID int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDs sets the id generator used for history entries that arrive without one.
func WithIDs(ids IDFunc) StoreOption {
	return func(s *Store) { s.ids = ids }
}

// WithClock sets the clock used by schema migrations.
func WithClock(c Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithStorageKey overrides the KV key the state is persisted under.
func WithStorageKey(key string) StoreOption {
	return func(s *Store) { s.key = key }
}

// WithStoreHooks attaches observation hooks.
func WithStoreHooks(h StoreHooks) StoreOption {
	return func(s *Store) { s.hooks = h }
}

// NewStore creates an empty store persisting through kv. A nil kv keeps
// state in memory only.
func NewStore(kv KV, logger log.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Store{
		state:  NewState(),
		kv:     kv,
		key:    StorageKey,
		ids:    NewID,
		clock:  time.Now,
		logger: logger,
		dirty:  make(chan struct{}, 1),
		subs:   make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the persisted record, migrating
// older schemas. Any failure leaves the store with an empty state and is
// returned for logging only.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.read(ctx)

	s.mu.Lock()
	s.state = loaded
	s.broadcast(loaded)
	s.mu.Unlock()

	if s.hooks.OnChange != nil {
		snap := loaded.Clone()
		s.hooks.OnChange(&snap)
	}
	return err
}

func (s *Store) read(ctx context.Context) (State, error) {
	if s.kv == nil {
		return NewState(), nil
	}

	blob, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return NewState(), fmt.Errorf("read %s: %w", s.key, err)
	}
	if !ok {
		return NewState(), nil
	}

	st, version, err := decodeRecord(blob, s.clock())
	if err != nil {
		return NewState(), fmt.Errorf("decode %s: %w", s.key, err)
	}
	if version < SchemaVersion {
		s.logger.Info(ctx, "migrated persisted alerts",
			"from_version", version,
			"to_version", SchemaVersion,
		)
		// write the migrated shape back on the next persist
		s.markDirty()
	}
	return st, nil
}

// Run persists the latest state every time the store changes, until ctx is
// done. A final flush is attempted on exit.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error(ctx, err, "final alerts flush failed")
			}
			return
		case <-s.dirty:
			if err := s.Flush(ctx); err != nil {
				s.logger.Error(ctx, err, "persist alerts failed")
			}
		}
	}
}

// Flush writes the current state synchronously.
func (s *Store) Flush(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}

	start := time.Now()
	blob, err := encodeRecord(s.State())
	if err == nil {
		err = s.kv.Set(ctx, s.key, blob)
	}
	if s.hooks.OnPersist != nil {
		s.hooks.OnPersist(err, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ActiveAlerts returns every active alert across all coins.
func (s *Store) ActiveAlerts() []PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Flatten()
}

// ActiveFor returns a copy of the active alerts for one coin, newest first.
func (s *Store) ActiveFor(coinID string) []PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.state.ActiveAlerts[coinID]
	out := make([]PriceAlert, len(list))
	copy(out, list)
	return out
}

// Triggered returns a copy of the history, newest first.
func (s *Store) Triggered() []TriggeredAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TriggeredAlert, len(s.state.TriggeredAll))
	copy(out, s.state.TriggeredAll)
	return out
}

// UnreadCount returns the number of unread history entries.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UnreadCount()
}

// UpsertAlert drops any alert for the same coin sharing either the id or the
// direction of a, then prepends a. This keeps one alert per direction per
// coin even when the caller supplies a fresh id for a replacement.
func (s *Store) UpsertAlert(a PriceAlert) {
	s.mutate(func(st *State) {
		prev := st.ActiveAlerts[a.CoinID]
		next := make([]PriceAlert, 0, len(prev)+1)
		next = append(next, a)
		for _, p := range prev {
			if p.ID == a.ID || p.Direction == a.Direction {
				continue
			}
			next = append(next, p)
		}
		st.ActiveAlerts[a.CoinID] = next
	})
}

// RemoveAlert deletes the alert with alertID from coinID's list. Missing
// alerts are ignored.
func (s *Store) RemoveAlert(coinID, alertID string) {
	s.mutate(func(st *State) {
		removeAlert(st, coinID, alertID)
	})
}

// AddTriggered prepends entries to the history as unread, assigning ids to
// entries that have none.
func (s *Store) AddTriggered(entries []TriggeredAlert) {
	if len(entries) == 0 {
		return
	}
	s.mutate(func(st *State) {
		s.addTriggered(st, entries)
	})
}

// Retire records triggered entries in the history and then removes each
// originating alert from the active set, as one atomic step.
func (s *Store) Retire(triggered []TriggeredAlert) {
	if len(triggered) == 0 {
		return
	}
	s.mutate(func(st *State) {
		s.addTriggered(st, triggered)
		for _, t := range triggered {
			removeAlert(st, t.CoinID, t.AlertID)
		}
	})
}

// MarkTriggeredRead marks one history entry read. Missing ids are ignored.
func (s *Store) MarkTriggeredRead(id string) {
	s.mutate(func(st *State) {
		for i := range st.TriggeredAll {
			if st.TriggeredAll[i].ID == id {
				st.TriggeredAll[i].Read = true
			}
		}
	})
}

// MarkAllTriggeredRead marks every history entry read.
func (s *Store) MarkAllTriggeredRead() {
	s.mutate(func(st *State) {
		for i := range st.TriggeredAll {
			st.TriggeredAll[i].Read = true
		}
	})
}

// ClearAllTriggered empties the history.
func (s *Store) ClearAllTriggered() {
	s.mutate(func(st *State) {
		st.TriggeredAll = []TriggeredAlert{}
	})
}

// ClearTriggeredUnread drops unread history entries and keeps read ones.
func (s *Store) ClearTriggeredUnread() {
	s.mutate(func(st *State) {
		kept := make([]TriggeredAlert, 0, len(st.TriggeredAll))
		for _, t := range st.TriggeredAll {
			if t.Read {
				kept = append(kept, t)
			}
		}
		st.TriggeredAll = kept
	})
}

// Subscribe returns a channel that receives the latest state after every
// change, starting with the current one. Slow readers only ever see the most
// recent snapshot. The cancel func must be called to release the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	// holding the read lock keeps mutations from slipping in between the
	// initial snapshot and registration
	s.mu.RLock()
	ch <- s.state.Clone()
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()
	s.mu.RUnlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) mutate(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.Clone()
	s.broadcast(snap)
	s.mu.Unlock()

	if s.hooks.OnChange != nil {
		s.hooks.OnChange(&snap)
	}
	s.markDirty()
}

func (s *Store) addTriggered(st *State, entries []TriggeredAlert) {
	next := make([]TriggeredAlert, 0, len(entries)+len(st.TriggeredAll))
	for _, e := range entries {
		e.Read = false
		if e.ID == "" {
			e.ID = s.ids()
		}
		next = append(next, e)
	}
	st.TriggeredAll = append(next, st.TriggeredAll...)
}

func removeAlert(st *State, coinID, alertID string) {
	prev, ok := st.ActiveAlerts[coinID]
	if !ok {
		return
	}
	next := make([]PriceAlert, 0, len(prev))
	for _, p := range prev {
		if p.ID != alertID {
			next = append(next, p)
		}
	}
	st.ActiveAlerts[coinID] = next
}

func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// broadcast must be called with s.mu held so subscribers see snapshots in
// mutation order.
func (s *Store) broadcast(snap State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		// drop the stale snapshot, keep the latest
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap.Clone():
		default:
		}
	}
}
