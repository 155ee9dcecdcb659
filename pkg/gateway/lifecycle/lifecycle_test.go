package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLifecycle_Draining(t *testing.T) {
	var nilLC *Lifecycle
	if nilLC.IsDraining() {
		t.Fatalf("nil lifecycle should not be draining")
	}
	l := New()
	l.SetDraining(true)
	if !l.IsDraining() {
		t.Fatalf("IsDraining=false, want true")
	}
	l.SetDraining(false)
	if l.IsDraining() {
		t.Fatalf("IsDraining=true, want false")
	}
}

func TestLifecycle_RegisterUnregister_CountAndWait(t *testing.T) {
	l := New()
	u1 := l.Register("s1", Handle{})
	u2 := l.Register("s2", Handle{})
	if got := l.LiveSessions(); got != 2 {
		t.Fatalf("count=%d, want 2", got)
	}

	u1()
	u1()
	if got := l.LiveSessions(); got != 1 {
		t.Fatalf("count=%d, want 1", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if l.Wait(ctx) {
		t.Fatalf("Wait returned true with a live session")
	}

	u2()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel2()
	if !l.Wait(ctx2) {
		t.Fatalf("Wait returned false after all sessions ended")
	}
}

func TestLifecycle_ReRegisterReplaces(t *testing.T) {
	l := New()
	old := l.Register("s1", Handle{})
	cur := l.Register("s1", Handle{})
	if got := l.LiveSessions(); got != 1 {
		t.Fatalf("count=%d, want 1", got)
	}
	old()
	if got := l.LiveSessions(); got != 1 {
		t.Fatalf("stale unregister removed the new entry, count=%d", got)
	}
	cur()
	if got := l.LiveSessions(); got != 0 {
		t.Fatalf("count=%d, want 0", got)
	}
}

func TestLifecycle_WarnAndCancelAll(t *testing.T) {
	l := New()
	var warned, canceled atomic.Int64
	var lastCode atomic.Value
	h := Handle{
		Cancel: func() { canceled.Add(1) },
		Warn: func(code, message string) error {
			lastCode.Store(code)
			warned.Add(1)
			return nil
		},
	}
	l.Register("s1", h)
	l.Register("s2", h)
	l.Register("s3", Handle{})

	if n := l.WarnAll("server_draining", "shutting down"); n != 2 {
		t.Fatalf("warned=%d, want 2", n)
	}
	if got, _ := lastCode.Load().(string); got != "server_draining" {
		t.Fatalf("code=%q", got)
	}
	if n := l.CancelAll(); n != 2 {
		t.Fatalf("canceled=%d, want 2", n)
	}
	if warned.Load() != 2 || canceled.Load() != 2 {
		t.Fatalf("calls warn=%d cancel=%d, want 2/2", warned.Load(), canceled.Load())
	}
}
