// Package session keeps the per-caller conversation state between stateless
// webhook callbacks.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/consultorio-rincon/voice-frontdesk/metrics"
	"github.com/consultorio-rincon/voice-frontdesk/types"
)

// DefaultTTL is how long an idle conversation survives before the janitor
// evicts it.
const DefaultTTL = 30 * time.Minute

type entry struct {
	mu       sync.Mutex
	convo    *types.ConversationContext
	lastSeen time.Time
}

// Store maps a caller identity to its conversation context. Reads and writes
// for one caller are serialized on that caller's entry; different callers
// never contend.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	log     zerolog.Logger
}

// NewStore creates a store with the given idle TTL; ttl <= 0 uses DefaultTTL.
func NewStore(ttl time.Duration, log zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		log:     log,
	}
}

func (s *Store) lookup(caller string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[caller]
	if !ok {
		e = &entry{convo: types.NewConversationContext()}
		s.entries[caller] = e
		metrics.ActiveConversations.Set(float64(len(s.entries)))
	}
	e.lastSeen = time.Now()
	return e
}

// Get returns a snapshot of the caller's context, creating a fresh greeting
// context if none exists. It never fails.
func (s *Store) Get(caller string) types.ConversationContext {
	e := s.lookup(caller)
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.convo)
}

// Update applies an atomic read-modify-write to the caller's context.
func (s *Store) Update(caller string, mutate func(*types.ConversationContext)) {
	e := s.lookup(caller)
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(e.convo)
}

// AppendHistory records one conversation turn, trimming to the bounded
// window.
func (s *Store) AppendHistory(caller string, role types.Role, text string) {
	s.Update(caller, func(c *types.ConversationContext) {
		c.PushTurn(role, text)
	})
}

// Reset puts the caller back at the greeting step. Used defensively when a
// call ends or an impossible state is detected.
func (s *Store) Reset(caller string) {
	s.Update(caller, func(c *types.ConversationContext) {
		*c = *types.NewConversationContext()
	})
}

// Len reports the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor evicts idle conversations until ctx is done. The sweep
// interval defaults to one minute when zero.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for caller, e := range s.entries {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.entries, caller)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.ActiveConversations.Set(float64(len(s.entries)))
		s.log.Debug().Int("evicted", evicted).Int("remaining", len(s.entries)).Msg("swept idle conversations")
	}
}

func snapshot(c *types.ConversationContext) types.ConversationContext {
	out := *c
	out.Slots = make(map[string]string, len(c.Slots))
	for k, v := range c.Slots {
		out.Slots[k] = v
	}
	out.History = append([]types.Turn(nil), c.History...)
	return out
}
