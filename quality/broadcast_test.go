package quality

import (
	"testing"
)

// TestBroadcasterRegistrationOrder verifies listeners fire in the order
// they subscribed.
func TestBroadcasterRegistrationOrder(t *testing.T) {
	b := NewBroadcaster()

	var order []int
	b.Subscribe(func(Metrics) { order = append(order, 1) })
	b.Subscribe(func(Metrics) { order = append(order, 2) })
	b.Subscribe(func(Metrics) { order = append(order, 3) })

	b.Publish(Metrics{})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Expected invocation order [1 2 3], got %v", order)
	}
}

// TestBroadcasterUnsubscribe verifies an unsubscribed listener receives
// nothing further.
func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	calls := 0
	unsubscribe := b.Subscribe(func(Metrics) { calls++ })

	b.Publish(Metrics{})
	unsubscribe()
	b.Publish(Metrics{})
	b.Publish(Metrics{})

	if calls != 1 {
		t.Errorf("Expected exactly 1 notification, got %d", calls)
	}

	// Double unsubscribe must be harmless.
	unsubscribe()
	if b.Len() != 0 {
		t.Errorf("Expected no listeners, got %d", b.Len())
	}
}

// TestBroadcasterUnsubscribeDuringPublish verifies a listener removed
// mid-pass is not invoked later in the same pass.
func TestBroadcasterUnsubscribeDuringPublish(t *testing.T) {
	b := NewBroadcaster()

	secondCalls := 0
	var unsubscribeSecond func()

	b.Subscribe(func(Metrics) { unsubscribeSecond() })
	unsubscribeSecond = b.Subscribe(func(Metrics) { secondCalls++ })

	b.Publish(Metrics{})
	if secondCalls != 0 {
		t.Errorf("Listener unsubscribed mid-pass was invoked %d times", secondCalls)
	}

	b.Publish(Metrics{})
	if secondCalls != 0 {
		t.Errorf("Unsubscribed listener was invoked on a later pass %d times", secondCalls)
	}
}

// TestBroadcasterSubscribeDuringPublish verifies a subscription made during
// a pass does not join that pass but receives later ones.
func TestBroadcasterSubscribeDuringPublish(t *testing.T) {
	b := NewBroadcaster()

	lateCalls := 0
	subscribed := false
	b.Subscribe(func(Metrics) {
		if !subscribed {
			subscribed = true
			b.Subscribe(func(Metrics) { lateCalls++ })
		}
	})

	b.Publish(Metrics{})
	if lateCalls != 0 {
		t.Errorf("Listener subscribed mid-pass joined the same pass, calls=%d", lateCalls)
	}

	b.Publish(Metrics{})
	if lateCalls != 1 {
		t.Errorf("Expected 1 call on the following pass, got %d", lateCalls)
	}
}

// TestBroadcasterNilListener verifies a nil listener is rejected without
// affecting fan-out.
func TestBroadcasterNilListener(t *testing.T) {
	b := NewBroadcaster()

	unsubscribe := b.Subscribe(nil)
	unsubscribe()

	if b.Len() != 0 {
		t.Errorf("Nil listener should not register, got %d listeners", b.Len())
	}

	b.Publish(Metrics{})
}
