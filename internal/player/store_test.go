package player

import "testing"

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	if _, ok := s.Get(1); ok {
		t.Fatal("expected empty store")
	}

	sess := &Session{handle: 1}
	s.Put(sess)
	s.Put(&Session{handle: 2})

	got, ok := s.Get(1)
	if !ok || got != sess {
		t.Fatalf("expected stored session, got %v %v", got, ok)
	}
	if n := len(s.Handles()); n != 2 {
		t.Errorf("expected 2 handles, got %d", n)
	}

	s.Delete(1)
	if _, ok := s.Get(1); ok {
		t.Error("expected handle 1 to be gone")
	}
	s.Delete(1)
	if n := len(s.Handles()); n != 1 {
		t.Errorf("expected 1 handle, got %d", n)
	}
}
