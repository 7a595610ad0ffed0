package state

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"buildsession/internal/protocol"
)

// Change tells observers that a reducer step was committed.
type Change struct {
	Version uint64             `json:"version"`
	Kind    protocol.EventKind `json:"kind,omitempty"`
	Effects []Effect           `json:"-"`
}

// Refresh reports whether the preview must be re-fetched after this change.
func (c Change) Refresh() bool {
	return slices.Contains(c.Effects, EffectRefreshPreview)
}

// Store owns the committed session state. It is the only writer of the
// transcript, workspace status and file cache.
type Store struct {
	mu      sync.RWMutex
	state   State
	version uint64

	subMu   sync.Mutex
	subs    map[uint64]chan Change
	nextSub uint64
	hooks   []func(Effect)

	now    func() time.Time
	logger *slog.Logger
}

type StoreOption func(*Store)

// WithClock overrides the arrival clock used to stamp entries.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		state:  State{Transcript: []Entry{}, Files: FileCache{Tree: []protocol.FileNode{}}},
		subs:   make(map[uint64]chan Change),
		now:    time.Now,
		logger: logger.With("component", "state-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the committed state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Apply commits one inbound event, then runs its effects.
func (s *Store) Apply(ev protocol.Event, ids *IDSet) []Effect {
	s.mu.Lock()
	next, effects := Apply(s.state, ids, ev, s.now())
	s.state = next
	s.version++
	v := s.version
	s.mu.Unlock()

	s.publish(Change{Version: v, Kind: ev.Kind, Effects: effects})
	s.runEffects(effects)
	return effects
}

// Dispatch commits a local action.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = ApplyAction(s.state, a, s.now())
	s.version++
	v := s.version
	s.mu.Unlock()

	s.publish(Change{Version: v})
}

// OnEffect registers fn to run after every committed effect.
func (s *Store) OnEffect(fn func(Effect)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Subscribe returns a channel of committed changes. Slow readers lose
// changes rather than stall the reducer; they can always re-read Snapshot.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

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

func (s *Store) publish(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- c:
		default:
			s.logger.Debug("Dropping change for slow subscriber", "subscriber", id, "version", c.Version)
		}
	}
}

func (s *Store) runEffects(effects []Effect) {
	if len(effects) == 0 {
		return
	}
	s.subMu.Lock()
	hooks := slices.Clone(s.hooks)
	s.subMu.Unlock()

	for _, e := range effects {
		s.logger.Debug("Running effect", "effect", e.String())
		for _, fn := range hooks {
			fn(e)
		}
	}
}
