package logbus

import (
	"strconv"
	"testing"
	"time"

	"github.com/clawdshartavenger/alta-parking-app/internal/model"
)

func TestSnapshotKeepsRecentHistory(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Publish("log", strconv.Itoa(i))
	}

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	// Oldest events fall off the front.
	for i, want := range []string{"2", "3", "4"} {
		if snap[i].Data != want {
			t.Errorf("snap[%d] = %v, want %s", i, snap[i].Data, want)
		}
	}
}

func TestSubscribeReceivesPublished(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish("status", "hello")

	select {
	case evt := <-ch:
		if evt.Type != "status" || evt.Data != "hello" {
			t.Errorf("got %+v", evt)
		}
		if evt.Time == 0 {
			t.Error("event not timestamped")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			b.Publish("log", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	// The subscriber still got at least the first event.
	select {
	case <-ch:
	default:
		t.Error("subscriber buffer empty")
	}
}

func TestSubscribeWithReplayIsGapless(t *testing.T) {
	b := New(10)
	for i := 0; i < 3; i++ {
		b.Publish("log", strconv.Itoa(i))
	}

	history, ch, cancel := b.SubscribeWithReplay(4)
	defer cancel()

	b.Publish("log", "3")
	b.Publish("log", "4")

	// Everything published before the call is history, everything after is
	// live, with no event in both places.
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3", len(history))
	}
	for i, want := range []string{"0", "1", "2"} {
		if history[i].Data != want {
			t.Errorf("history[%d] = %v, want %s", i, history[i].Data, want)
		}
	}
	for _, want := range []string{"3", "4"} {
		select {
		case evt := <-ch:
			if evt.Data != want {
				t.Errorf("live event = %v, want %s", evt.Data, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("live event %s never delivered", want)
		}
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected extra event %v", evt.Data)
	default:
	}
}

func TestSubscribeWithReplayAfterClose(t *testing.T) {
	b := New(10)
	b.Publish("log", "early")
	b.Close()

	history, ch, cancel := b.SubscribeWithReplay(4)
	defer cancel()
	if history != nil {
		t.Errorf("history after close = %d events", len(history))
	}
	if _, ok := <-ch; ok {
		t.Error("channel open on a closed bus")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(4)
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	// Publishing after cancel must not panic.
	b.Publish("log", "late")
}

func TestStatusStampsTimestamp(t *testing.T) {
	b := New(10)
	b.Status(model.StatusEvent{Kind: model.StatusChecking, Message: "checking"})

	snap := b.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	evt, ok := snap[0].Data.(model.StatusEvent)
	if !ok {
		t.Fatalf("data type %T", snap[0].Data)
	}
	if evt.AtMs == 0 {
		t.Error("status event not timestamped")
	}
	if snap[0].Type != "status" {
		t.Errorf("type = %q", snap[0].Type)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(10)
	ch, _ := b.Subscribe(1)
	b.Close()
	b.Close()
	if _, ok := <-ch; ok {
		t.Error("subscriber channel open after Close")
	}
	b.Publish("log", "ignored")
	if got := b.Snapshot(); len(got) != 0 {
		t.Errorf("snapshot after close = %d events", len(got))
	}
}
