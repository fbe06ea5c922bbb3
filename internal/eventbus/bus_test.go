package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New[string](0)
	ch := bus.Subscribe()
	if n := bus.Publish("hello"); n != 1 {
		t.Fatalf("delivered to %d subscribers", n)
	}
	if v := <-ch; v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := New[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	if n := bus.Publish(2); n != 0 {
		t.Fatalf("full subscriber received event")
	}
	if bus.Dropped() != 1 {
		t.Fatalf("dropped %d, want 1", bus.Dropped())
	}
	if v := <-ch; v != 1 {
		t.Fatalf("got %d", v)
	}
}

func TestBusClose(t *testing.T) {
	bus := New[int](0)
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	if n := bus.Publish(3); n != 0 {
		t.Fatalf("publish after close delivered %d", n)
	}
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("subscribe after close should return a closed channel")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New[float64](0)
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
