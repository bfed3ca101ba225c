package cachex

import (
	"sync"
	"testing"
	"time"
)

type entry struct{ key string }

type evictLog struct {
	mu   sync.Mutex
	keys []string
}

func (l *evictLog) add(k string, _ *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, k)
}

func (l *evictLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

func newTestRegistry(size int, idle time.Duration) (*Registry[*entry], *evictLog) {
	log := &evictLog{}
	r := NewRegistry(Limits{Size: size, Idle: idle}, func(k string) *entry { return &entry{key: k} }, log.add)
	return r, log
}

func TestGetSharesValue(t *testing.T) {
	r, _ := newTestRegistry(10, time.Minute)
	if r.Get("u1") != r.Get("u1") {
		t.Fatal("expected one value per key")
	}
	first := r.Get("u1")
	r.Evict("u1")
	if r.Get("u1") == first {
		t.Fatal("expected a fresh value after evict")
	}
}

func TestIdleEntriesExpire(t *testing.T) {
	r, evicted := newTestRegistry(10, 30*time.Millisecond)
	first := r.Get("u1")

	time.Sleep(60 * time.Millisecond)
	if _, ok := r.Peek("u1"); ok {
		t.Fatal("idle entry should be gone")
	}
	if r.Get("u1") == first {
		t.Fatal("expected a fresh value for an idle user")
	}
	if len(evicted.snapshot()) == 0 {
		t.Fatal("expected eviction callback for the idle entry")
	}
}

func TestGetRestartsIdleTimer(t *testing.T) {
	r, _ := newTestRegistry(10, 80*time.Millisecond)
	first := r.Get("u1")
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		if r.Get("u1") != first {
			t.Fatalf("active entry expired after %d touches", i)
		}
	}
}

func TestSizeBound(t *testing.T) {
	r, evicted := newTestRegistry(2, time.Minute)
	r.Get("u1")
	r.Get("u2")
	r.Get("u3")
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
	if _, ok := r.Peek("u1"); ok {
		t.Fatal("least recently used entry should be dropped")
	}
	if got := evicted.snapshot(); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("unexpected evictions: %v", got)
	}
}
