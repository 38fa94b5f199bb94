package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// next waits for one frame on ch.
func next(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case frame, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(frame)
	case <-time.After(time.Second):
		t.Fatal("no frame within 1s")
	}
	return ""
}

func TestBroker_ClientCount(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	a, c := b.Subscribe(), b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(a)
	b.Unsubscribe(a)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients after unsubscribe = %d, want 1", n)
	}
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel still open")
	}
	b.Unsubscribe(c)
}

func TestBroker_FrameFormat(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()

	b.Publish(Event{Type: TypeRunFinished, Data: map[string]any{"run_id": "r1", "updated": 2}})
	b.Publish(Event{Type: TypeRunFinished, Data: map[string]any{"run_id": "r2"}})

	first := next(t, ch)
	want := "id: 1\nevent: run.finished\ndata: {\"run_id\":\"r1\",\"updated\":2}\n\n"
	if first != want {
		t.Errorf("frame = %q, want %q", first, want)
	}
	if second := next(t, ch); !strings.HasPrefix(second, "id: 2\n") {
		t.Errorf("second frame = %q, want id 2", second)
	}
}

func TestBroker_ReachesEveryClient(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	a, c := b.Subscribe(), b.Subscribe()

	b.PublishNoteEvent("updated", "a.md")

	for _, ch := range []chan []byte{a, c} {
		if got := next(t, ch); !strings.Contains(got, `"path":"a.md"`) {
			t.Errorf("frame = %q", got)
		}
	}
}

func TestPublishNoteEvent_Kinds(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()

	b.PublishNoteEvent("updated", "a.md")
	b.PublishNoteEvent("deleted", "c.md")
	b.PublishNoteEvent("restored", "b.md")

	if got := next(t, ch); !strings.Contains(got, "event: note.updated\n") {
		t.Errorf("first frame = %q", got)
	}
	if got := next(t, ch); !strings.Contains(got, "event: note.restored\n") || !strings.Contains(got, `"path":"b.md"`) {
		t.Errorf("second frame = %q", got)
	}
	if len(ch) != 0 {
		t.Errorf("%d unexpected frames queued", len(ch))
	}
}

func TestBroker_SlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for range clientBuffer + 10 {
			b.PublishNoteEvent("updated", "x.md")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client")
	}
	if len(ch) != clientBuffer {
		t.Errorf("queued = %d, want %d", len(ch), clientBuffer)
	}
}

func TestBroker_UnencodableDataDropped(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()

	b.Publish(Event{Type: TypeRunFinished, Data: func() {}})
	if len(ch) != 0 {
		t.Errorf("frame queued for unencodable data")
	}
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()

	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Fatal("subscriber channel still open after Close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after close = %d", n)
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
	b.PublishNoteEvent("updated", "x.md")
}

func TestServeHTTP_StreamsEventsAndPings(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishNoteEvent("updated", "x.md")
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.updated\n") {
		t.Errorf("stream missing event: %q", body)
	}
	if !strings.Contains(body, ": ping\n\n") {
		t.Errorf("stream missing keep-alive: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients after disconnect = %d", n)
	}
}

func TestServeHTTP_EndsWhenBrokerCloses(t *testing.T) {
	b := NewBroker(time.Second)
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	for b.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler still running after Close")
	}
}
