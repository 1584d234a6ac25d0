package report

import "sync"

// LRUStore keeps the most recently used summaries in memory and
// delegates to a backing Store on miss. A run is usually followed by
// several tally_inspect calls against the same summary, one per trial or
// category, so recent runs are served without rereading their JSON.
type LRUStore struct {
	mu   sync.Mutex
	cap  int
	back Store

	// Doubly-linked list for LRU ordering (most recent at head).
	head, tail *lruEntry
	items      map[string]*lruEntry
}

type lruEntry struct {
	key     string
	summary *Summary
	prev    *lruEntry
	next    *lruEntry
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacity must be >= 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		items: make(map[string]*lruEntry, cap),
	}
}

// Save caches the summary and writes it through to the backing store.
func (s *LRUStore) Save(summary *Summary) error {
	s.mu.Lock()
	s.put(summary.ID, summary)
	s.mu.Unlock()

	return s.back.Save(summary)
}

// Load checks the cache first. On miss, it loads from the backing store
// and promotes the summary into the cache.
func (s *LRUStore) Load(runID string) (*Summary, error) {
	s.mu.Lock()
	if e, ok := s.items[runID]; ok {
		s.moveToFront(e)
		sum := e.summary
		s.mu.Unlock()
		return sum, nil
	}
	s.mu.Unlock()

	sum, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.put(runID, sum)
	s.mu.Unlock()

	return sum, nil
}

// Len reports how many summaries are cached.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// put inserts or refreshes key. Callers hold s.mu.
func (s *LRUStore) put(key string, sum *Summary) {
	if e, ok := s.items[key]; ok {
		e.summary = sum
		s.moveToFront(e)
		return
	}
	e := &lruEntry{key: key, summary: sum}
	s.items[key] = e
	s.pushFront(e)
	if len(s.items) > s.cap {
		s.evict()
	}
}

func (s *LRUStore) pushFront(e *lruEntry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *LRUStore) moveToFront(e *lruEntry) {
	if s.head == e {
		return
	}
	s.remove(e)
	s.pushFront(e)
}

func (s *LRUStore) remove(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (s *LRUStore) evict() {
	if s.tail == nil {
		return
	}
	e := s.tail
	s.remove(e)
	delete(s.items, e.key)
}
