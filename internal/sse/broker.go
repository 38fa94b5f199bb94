// Package sse streams note and run events to HTTP clients as Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event types sent to clients.
const (
	TypeNoteUpdated  = "note.updated"
	TypeNoteRestored = "note.restored"
	TypeRunFinished  = "run.finished"
)

// clientBuffer is the number of frames a client may lag behind before new
// frames are dropped for it.
const clientBuffer = 64

// Event is one message on the stream. Data is sent as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker fans events out to every connected client. A client that cannot keep
// up misses frames; publishing never blocks.
type Broker struct {
	keepAlive time.Duration

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	seq     uint64
	closed  bool
}

// NewBroker returns a broker whose streams carry a keep-alive comment every
// keepAlive interval (15s when keepAlive is not positive).
func NewBroker(keepAlive time.Duration) *Broker {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &Broker{
		keepAlive: keepAlive,
		clients:   make(map[chan []byte]struct{}),
	}
}

// Subscribe registers a client. Its channel is closed by Unsubscribe or Close;
// after Close it comes back already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client and closes its channel. Unknown channels are ignored.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client. Later publishes are discarded.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		close(ch)
	}
	clear(b.clients)
}

// Publish sends event to every connected client. Events whose data cannot be
// encoded are dropped.
func (b *Broker) Publish(event Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	frame := encodeFrame(b.seq, event.Type, data)
	for ch := range b.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// PublishNoteEvent adapts the note service update hook. kind is "updated" or
// "restored"; other kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, path string) {
	var typ string
	switch kind {
	case "updated":
		typ = TypeNoteUpdated
	case "restored":
		typ = TypeNoteRestored
	default:
		return
	}
	b.Publish(Event{Type: typ, Data: map[string]string{"path": path}})
}

// encodeFrame renders one SSE frame. JSON output never contains a raw newline,
// so data fits on a single line.
func encodeFrame(id uint64, typ string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(id, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(typ)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}

// ServeHTTP streams events until the client goes away or the broker closes
// (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			frame = []byte(": ping\n\n")
		case f, ok := <-ch:
			if !ok {
				return
			}
			frame = f
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
