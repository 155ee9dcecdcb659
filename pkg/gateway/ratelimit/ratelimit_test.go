package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestAcquireWSSession_EnforcesConcurrency(t *testing.T) {
	l := New(Config{MaxConcurrentWSSessions: 1})
	now := time.Now()

	first := l.AcquireWSSession("p1", now)
	if !first.Allowed || first.Permit == nil {
		t.Fatalf("first allowed=%v permit=%v", first.Allowed, first.Permit)
	}

	second := l.AcquireWSSession("p1", now)
	if second.Allowed {
		t.Fatalf("second should be denied")
	}

	other := l.AcquireWSSession("p2", now)
	if !other.Allowed {
		t.Fatalf("other principal should be allowed")
	}

	first.Permit.Release()
	first.Permit.Release()
	third := l.AcquireWSSession("p1", now)
	if !third.Allowed {
		t.Fatalf("third should be allowed after release")
	}
}

func TestAcquireRequest_TokenBucket(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 2})
	now := time.Now()

	for i := 0; i < 2; i++ {
		d := l.AcquireRequest("p1", now)
		if !d.Allowed {
			t.Fatalf("request %d denied within burst", i)
		}
		d.Permit.Release()
	}

	denied := l.AcquireRequest("p1", now)
	if denied.Allowed {
		t.Fatalf("request beyond burst should be denied")
	}
	if denied.RetryAfter != 1 {
		t.Fatalf("RetryAfter=%d, want 1", denied.RetryAfter)
	}

	later := l.AcquireRequest("p1", now.Add(1100*time.Millisecond))
	if !later.Allowed {
		t.Fatalf("request after refill should be allowed")
	}
}

func TestAcquireRequest_ConcurrencyCap(t *testing.T) {
	l := New(Config{MaxConcurrentRequests: 1})
	now := time.Now()

	first := l.AcquireRequest("", now)
	if !first.Allowed {
		t.Fatalf("first denied")
	}
	if second := l.AcquireRequest("anonymous", now); second.Allowed {
		t.Fatalf("empty principal and anonymous should share a slot")
	}
	first.Permit.Release()
	if third := l.AcquireRequest("", now); !third.Allowed {
		t.Fatalf("third denied after release")
	}
}

func TestAcquireRequest_Unlimited(t *testing.T) {
	l := New(Config{})
	now := time.Now()
	for i := 0; i < 100; i++ {
		if d := l.AcquireRequest("p", now); !d.Allowed {
			t.Fatalf("request %d denied without limits", i)
		}
	}
}

func TestPrincipalKeyFromAPIKey(t *testing.T) {
	a := PrincipalKeyFromAPIKey("secret")
	if !strings.HasPrefix(a, "k_") || len(a) != 34 {
		t.Fatalf("key=%q", a)
	}
	if a != PrincipalKeyFromAPIKey("secret") || a == PrincipalKeyFromAPIKey("other") {
		t.Fatalf("keys should be stable and distinct")
	}
	if strings.Contains(a, "secret") {
		t.Fatalf("key leaks the api key")
	}
}

func TestGetOrCreate_BoundsEntries(t *testing.T) {
	l := New(Config{MaxEntries: 2, EntryTTL: time.Minute})
	now := time.Now()
	l.AcquireRequest("a", now)
	l.AcquireRequest("b", now)
	l.AcquireRequest("c", now.Add(2*time.Minute))
	l.mu.Lock()
	n := len(l.m)
	l.mu.Unlock()
	if n > 2 {
		t.Fatalf("entries=%d, want <= 2", n)
	}
}
