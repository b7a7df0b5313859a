package events

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed, want event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func waitClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	store := state.NewStore(1)
	bus.Publish(Event{Kind: KindDoor, State: store.Snapshot()})

	for _, ch := range []<-chan Event{a, b} {
		ev := receive(t, ch)
		if ev.Kind != KindDoor {
			t.Errorf("Kind = %q, want %q", ev.Kind, KindDoor)
		}
		if ev.Timestamp.IsZero() {
			t.Error("Timestamp not filled in")
		}
	}
}

func TestBus_OrderPreserved(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	ch, cancel := bus.Subscribe(8)
	defer cancel()

	kinds := []Kind{KindSensor, KindSecurity, KindOTP, KindLighting}
	for _, k := range kinds {
		bus.Publish(Event{Kind: k})
	}
	for _, want := range kinds {
		if got := receive(t, ch).Kind; got != want {
			t.Errorf("Kind = %q, want %q", got, want)
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	_, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Kind: KindSensor})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on an unread subscriber")
	}

	deadline := time.Now().Add(2 * time.Second)
	for bus.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if bus.Dropped() == 0 {
		t.Error("Dropped() = 0, want events dropped for the full subscriber")
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus(2)
	defer bus.Close()

	ch, cancel := bus.Subscribe(2)
	cancel()
	cancel()

	waitClosed(t, ch)
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus(2)
	ch, cancel := bus.Subscribe(2)
	defer cancel()

	bus.Close()
	bus.Close()
	waitClosed(t, ch)

	// Publishing and subscribing after Close must not block or panic.
	bus.Publish(Event{Kind: KindOTP})
	late, lateCancel := bus.Subscribe(1)
	lateCancel()
	waitClosed(t, late)
}

func TestBus_CancelRacingClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		bus := NewBus(2)
		subs := make([]func(), 0, 8)
		chans := make([]<-chan Event, 0, 8)
		for j := 0; j < 8; j++ {
			ch, cancel := bus.Subscribe(1)
			chans = append(chans, ch)
			subs = append(subs, cancel)
		}

		var wg sync.WaitGroup
		for _, cancel := range subs {
			wg.Add(1)
			go func(cancel func()) {
				defer wg.Done()
				bus.Publish(Event{Kind: KindSensor})
				cancel()
			}(cancel)
		}
		bus.Close()
		wg.Wait()

		for _, ch := range chans {
			waitClosed(t, ch)
		}
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	gone, cancel := bus.Subscribe(4)
	kept, keptCancel := bus.Subscribe(4)
	defer keptCancel()

	// Unsubscribing is complete once cancel returns.
	cancel()
	bus.Publish(Event{Kind: KindDoor})

	if ev := receive(t, kept); ev.Kind != KindDoor {
		t.Errorf("kept subscriber got %q, want %q", ev.Kind, KindDoor)
	}
	for ev := range gone {
		t.Errorf("cancelled subscriber received %q", ev.Kind)
	}
}
