package session

import (
	"testing"
	"time"
)

func TestRegistryGetCreatesOnce(t *testing.T) {
	created := 0
	r := NewRegistry(time.Hour, func(id string) *Session {
		created++
		return New(id, &fakeEditor{})
	})

	a := r.Get("")
	if a.ID() != DefaultID {
		t.Fatalf("ID = %q, want %q", a.ID(), DefaultID)
	}
	if r.Get(DefaultID) != a {
		t.Fatal("Get should return the existing session")
	}
	b := r.Get("other")
	if b == a || created != 2 || r.Len() != 2 {
		t.Fatalf("created = %d, len = %d", created, r.Len())
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("Lookup should not create sessions")
	}
	if err := r.Close("other"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Lookup("other"); ok {
		t.Fatal("closed session should be gone")
	}
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, func(id string) *Session {
		return New(id, &fakeEditor{})
	})
	first := r.Get("s1")
	time.Sleep(50 * time.Millisecond)
	if _, ok := r.Lookup("s1"); ok {
		t.Fatal("idle session should expire")
	}
	if r.Get("s1") == first {
		t.Fatal("expired session should be replaced with a fresh one")
	}
}

func TestRegistryWithoutExpiry(t *testing.T) {
	r := NewRegistry(0, func(id string) *Session { return New(id, &fakeEditor{}) })
	s := r.Get("keep")
	if got, ok := r.Lookup("keep"); !ok || got != s {
		t.Fatal("session should be kept")
	}
}
