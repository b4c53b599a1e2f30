package gallery

import "sync"

// Store owns one State and serializes every transition through Reduce.
// Readers get immutable snapshots; the only way to change the state is
// Dispatch.
type Store struct {
	mu    sync.Mutex
	state State

	// rev changes whenever the item slice is replaced.
	rev uint64

	issued  uint64
	applied uint64

	memoValid bool
	memoRev   uint64
	memoQuery string
	memoItems []Item
}

func NewStore(initial State) *Store {
	if initial.Items == nil {
		initial.Items = []Item{}
	}
	return &Store{state: initial}
}

// BeginFetch returns the sequence number a fetch must attach to the SetItems
// it eventually dispatches.
func (s *Store) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Dispatch applies a and reports whether it was applied. A tagged SetItems
// older than the newest one already applied is dropped, so the most recently
// issued fetch wins regardless of arrival order.
func (s *Store) Dispatch(a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := a.(SetItems); ok && set.Seq != 0 {
		if set.Seq <= s.applied {
			return false
		}
		s.applied = set.Seq
	}

	prev := s.state.Items
	s.state = Reduce(s.state, a)
	if !sameSlice(prev, s.state.Items) {
		s.rev++
	}
	return true
}

// Snapshot returns the current state. Its slices must be treated as read-only.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FilteredItems returns the items matching the current search query. The
// result is cached until the items or the query change.
func (s *Store) FilteredItems() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memoValid && s.memoRev == s.rev && s.memoQuery == s.state.SearchQuery {
		return s.memoItems
	}
	s.memoItems = FilterItems(s.state.Items, s.state.SearchQuery)
	s.memoRev = s.rev
	s.memoQuery = s.state.SearchQuery
	s.memoValid = true
	return s.memoItems
}

// Find looks an item up among all items, whatever the search query hides.
func (s *Store) Find(id int64) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.state.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func sameSlice(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
