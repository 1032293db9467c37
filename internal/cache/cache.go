// Package cache memoizes upstream payloads and derived statistics for the
// lifetime of one process session.
//
// Entries carry a freshness policy. Permanent entries hold immutable
// historical data and never expire within the session. DailyRefresh entries
// are tagged with the calendar day they were written and read as absent once
// the day changes. Unreadable entries are always treated as absent.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/paddock/internal/resilience"
)

// Policy governs when a cached value is considered stale.
type Policy string

const (
	// Permanent entries never expire within the session.
	Permanent Policy = "permanent"
	// DailyRefresh entries expire when the wall-clock day changes.
	DailyRefresh Policy = "daily"
)

// Cache is the engine's view of the result cache.
type Cache interface {
	// Get returns the payload for key. ok is false when the key is absent,
	// stale or unreadable.
	Get(ctx context.Context, key string) (payload []byte, ok bool)
	// Put stores payload under key as a whole-value replacement.
	Put(ctx context.Context, key string, payload []byte, policy Policy) error
}

// Backend is raw key-value storage under a Session.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Event describes one completed cache write.
type Event struct {
	Key    string    `json:"key"`
	Policy Policy    `json:"policy"`
	Size   int       `json:"size"`
	At     time.Time `json:"at"`
}

// Listener is notified synchronously after each write.
type Listener func(Event)

// record is the stored envelope around a payload.
type record struct {
	Policy  Policy          `json:"policy"`
	Day     string          `json:"day,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Session implements Cache over a Backend.
type Session struct {
	backend Backend
	nowFunc func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the wall clock used for day tagging.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.nowFunc = now
	}
}

// NewSession wraps backend with freshness handling.
func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{backend: backend, nowFunc: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for write notifications and returns a function that
// removes it.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

func (s *Session) day() string {
	return s.nowFunc().Format(time.DateOnly)
}

// Get implements Cache.
func (s *Session) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := s.backend.Load(ctx, key)
	if err != nil {
		zap.L().Warn("cache: load failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		zap.L().Warn("cache: corrupt entry, treating as miss", zap.String("key", key), zap.Error(err))
		_ = s.backend.Delete(ctx, key)
		return nil, false
	}

	if rec.Policy == DailyRefresh && rec.Day != s.day() {
		zap.L().Debug("cache: stale daily entry", zap.String("key", key), zap.String("day", rec.Day))
		return nil, false
	}
	return []byte(rec.Payload), true
}

// Put implements Cache.
func (s *Session) Put(ctx context.Context, key string, payload []byte, policy Policy) error {
	if policy != Permanent && policy != DailyRefresh {
		return eris.Errorf("cache: unknown policy %q", policy)
	}
	if !json.Valid(payload) {
		return eris.Errorf("cache: payload for %s is not valid JSON", key)
	}
	rec := record{Policy: policy, Payload: json.RawMessage(payload)}
	if policy == DailyRefresh {
		rec.Day = s.day()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	if err := s.backend.Save(ctx, key, raw); err != nil {
		return eris.Wrapf(err, "cache: save %s", key)
	}

	ev := Event{Key: key, Policy: policy, Size: len(payload), At: s.nowFunc()}
	zap.L().Debug("cache: write", zap.String("key", key), zap.String("policy", string(policy)), zap.Int("bytes", ev.Size))

	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(ev)
		}
	}
	return nil
}

// Close releases the backend.
func (s *Session) Close() error {
	return s.backend.Close()
}

func decodeRecord(raw []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, eris.Wrap(resilience.ErrCacheCorrupt, err.Error())
	}
	if len(rec.Payload) == 0 || (rec.Policy != Permanent && rec.Policy != DailyRefresh) {
		return record{}, resilience.ErrCacheCorrupt
	}
	return rec, nil
}

// GetJSON reads key and decodes it into a T. A payload that does not decode
// is treated as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var v T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		zap.L().Warn("cache: payload does not decode, treating as miss", zap.String("key", key), zap.Error(err))
		var zero T
		return zero, false
	}
	return v, true
}

// PutJSON encodes v and stores it under key.
func PutJSON[T any](ctx context.Context, c Cache, key string, v T, policy Policy) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: marshal %s", key)
	}
	return c.Put(ctx, key, raw, policy)
}

// Key builds a storage key following the <domain>_<version>_<id> convention.
func Key(domain, version string, id any) string {
	return fmt.Sprintf("%s_%s_%v", domain, version, id)
}

// Key domains. Bump the version when a payload's shape changes.
const (
	DomainDrivers        = "drivers"
	DomainConstructors   = "constructors"
	DomainCircuits       = "circuits"
	DomainSchedule       = "schedule"
	DomainSeasonResults  = "seasonResults"
	DomainStandings      = "standings"
	DomainDriverResults  = "driverResults"
	DomainDriverQuali    = "driverQualifying"
	DomainDriverStats    = "driverStats"
	DomainTeamResults    = "constructorResults"
	DomainTeamQuali      = "constructorQualifying"
	DomainTeamStats      = "constructorStats"
	DomainCircuitStats   = "circuitRaceStats"
	DomainPitStops       = "pitStops"
	DomainPitStopSummary = "pitStopSummary"
)
