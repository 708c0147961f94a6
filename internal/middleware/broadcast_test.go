package middleware

import "testing"

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	if b.Count() != 2 {
		t.Fatalf("count %d, want 2", b.Count())
	}

	b.Publish("msg")
	if got := <-s1.C; got != "msg" {
		t.Fatalf("s1 got %v", got)
	}
	if got := <-s2.C; got != "msg" {
		t.Fatalf("s2 got %v", got)
	}
}

func TestBroadcastLatestWins(t *testing.T) {
	b := NewBroadcaster(nil)
	s := b.Subscribe()

	// Subscriber never reads; only the newest message may survive.
	b.Publish("first")
	b.Publish("second")
	b.Publish("third")

	if got := <-s.C; got != "third" {
		t.Fatalf("expected newest message, got %v", got)
	}
	select {
	case extra := <-s.C:
		t.Fatalf("unexpected queued message %v", extra)
	default:
	}
}

func TestBroadcastPublishNeverBlocks(t *testing.T) {
	b := NewBroadcaster(nil)
	_ = b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(i)
		}
		close(done)
	}()
	<-done
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	s := b.Subscribe()
	b.Unsubscribe(s)

	if _, ok := <-s.C; ok {
		t.Fatalf("channel should be closed")
	}
	if b.Count() != 0 {
		t.Fatalf("count %d, want 0", b.Count())
	}
	// Double unsubscribe is a no-op.
	b.Unsubscribe(s)

	b.Publish("after")
}

func TestCloseDetachesEverySubscriber(t *testing.T) {
	b := NewBroadcaster(nil)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Close()

	for _, s := range []*Subscriber{s1, s2} {
		if _, ok := <-s.C; ok {
			t.Fatalf("channel should be closed")
		}
	}
	if b.Count() != 0 {
		t.Fatalf("count %d, want 0", b.Count())
	}
}
