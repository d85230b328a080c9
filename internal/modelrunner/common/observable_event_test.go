package common

import "testing"

func TestObservableEventInvocationOrderAndMultiSubscribe(t *testing.T) {
	event := NewObservableEvent[string](nil)
	var calls []string

	event.Subscribe(func(v string) { calls = append(calls, "first:"+v) })
	event.Subscribe(func(v string) { calls = append(calls, "second:"+v) })
	event.Subscribe(func(v string) { calls = append(calls, "first:"+v) })

	event.Publish("x")

	want := []string{"first:x", "second:x", "first:x"}
	if len(calls) != len(want) {
		t.Fatalf("got %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestObservableEventHandlerPanicDoesNotStopPublish(t *testing.T) {
	event := NewObservableEvent[int](nil)
	var secondCalled bool

	event.Subscribe(func(int) { panic("boom") })
	event.Subscribe(func(int) { secondCalled = true })

	event.Publish(1)

	if !secondCalled {
		t.Fatal("expected second handler to run despite first handler panicking")
	}
}

func TestObservableEventUnsubscribe(t *testing.T) {
	event := NewObservableEvent[int](nil)
	var called bool

	idx := event.Subscribe(func(int) { called = true })
	event.Unsubscribe(idx)
	event.Publish(1)

	if called {
		t.Fatal("expected unsubscribed handler not to run")
	}
}
