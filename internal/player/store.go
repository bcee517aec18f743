package player

// Store holds live sessions keyed by handle.
// The Registry serializes all access; implementations need no locking.
type Store interface {
	Get(h Handle) (*Session, bool)
	Put(s *Session)
	Delete(h Handle)
	Handles() []Handle
}

// InMemoryStore is a map-backed Store.
type InMemoryStore struct {
	sessions map[Handle]*Session
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[Handle]*Session)}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(h Handle) (*Session, bool) {
	sess, ok := s.sessions[h]
	return sess, ok
}

// Put implements Store.Put.
func (s *InMemoryStore) Put(sess *Session) {
	s.sessions[sess.handle] = sess
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(h Handle) {
	delete(s.sessions, h)
}

// Handles implements Store.Handles.
func (s *InMemoryStore) Handles() []Handle {
	hs := make([]Handle, 0, len(s.sessions))
	for h := range s.sessions {
		hs = append(hs, h)
	}
	return hs
}
