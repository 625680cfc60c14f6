package batch

import "sync"

// Entry is the operator's curation state for one distinct completion text.
type Entry struct {
	Original string `json:"original"`
	Edited   string `json:"edited"`
	Included bool   `json:"included"`
}

// CurationStore maps completion text to its edited text and inclusion flag.
//
// Entries are keyed by the original text, so two units that return
// byte-identical completions share a single entry and the last write wins.
// Iteration follows first-insertion order.
type CurationStore struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
}

func NewCurationStore() *CurationStore {
	return &CurationStore{entries: make(map[string]*Entry)}
}

// Seed registers a fresh completion: edited text equals the original and the
// entry starts excluded. Seeding an existing key resets it.
func (s *CurationStore) Seed(text string) {
	s.Upsert(text, text, false)
}

// Upsert overwrites the edited text and inclusion flag for original.
func (s *CurationStore) Upsert(original, edited string, included bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[original]
	if !ok {
		e = &Entry{Original: original}
		s.entries[original] = e
		s.order = append(s.order, original)
	}
	e.Edited = edited
	e.Included = included
}

// Update applies fn to an existing entry under the write lock and returns
// the result. Unknown keys are left alone and Update reports false.
func (s *CurationStore) Update(original string, fn func(*Entry)) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[original]
	if !ok {
		return Entry{}, false
	}
	fn(e)
	e.Original = original
	return *e, true
}

func (s *CurationStore) Get(original string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[original]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns a snapshot of every entry in insertion order.
func (s *CurationStore) Entries() []Entry {
	return s.collect(func(Entry) bool { return true })
}

// Included returns a snapshot of the included entries in insertion order.
func (s *CurationStore) Included() []Entry {
	return s.collect(func(e Entry) bool { return e.Included })
}

func (s *CurationStore) collect(keep func(Entry) bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, key := range s.order {
		e := *s.entries[key]
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *CurationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Reset drops every entry.
func (s *CurationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.entries = make(map[string]*Entry)
}
