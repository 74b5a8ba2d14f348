package stubserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"captchaclient/internal/captcha"
)

// record is the server-side answer for one challenge.
type record struct {
	Variant       captcha.Variant
	Code          string
	Targets       []int
	SelectCount   int
	TargetPercent int
	Expires       time.Time
}

// Store keeps challenges in memory keyed by a random id, each for a fixed
// time to live.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]record
}

// NewStore creates a store. A nil clock uses time.Now.
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Store{ttl: ttl, now: now, items: make(map[string]record)}
}

// Put saves r under a new id and returns the id with its expiry.
func (s *Store) Put(r record) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	r.Expires = s.now().Add(s.ttl)
	s.items[id] = r
	return id, r.Expires
}

// Get returns the record for id. Expired records are dropped on the way.
func (s *Store) Get(id string) (record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.items[id]
	if !ok {
		return record{}, false
	}
	if s.now().After(r.Expires) {
		delete(s.items, id)
		return record{}, false
	}
	return r, true
}

// Delete removes id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Sweep drops every expired record and returns how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, r := range s.items {
		if now.After(r.Expires) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Len is the number of stored records, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
