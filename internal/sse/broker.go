// Package sse implements a Server-Sent Events broker for document and preview updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	TypeDocumentCreated = "document.created"
	TypeDocumentUpdated = "document.updated"
	TypeDocumentDeleted = "document.deleted"
	TypeIndexUpdated    = "index.updated"
	TypePreviewTime     = "preview.time"
	TypePreviewTrigger  = "preview.trigger"
	TypePreviewState    = "preview.state"
)

// Event represents an SSE event to broadcast. A non-empty Path limits
// delivery to clients watching that document or all documents.
type Event struct {
	Type string `json:"type"`
	Path string `json:"-"`
	Data any    `json:"data"`
}

type docEventReq struct {
	kind string
	path string
}

type previewTime struct {
	path string
	time float64
}

type client struct {
	ch   chan []byte
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the client set, the index throttle
// timestamp and the pending preview times. Public methods talk to the loop
// through channels.
type Broker struct {
	indexMin   time.Duration
	previewMin time.Duration

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	docEventCh    chan docEventReq
	previewCh     chan previewTime
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. indexThrottle bounds how often index.updated
// is sent; previewInterval bounds how often preview.time is sent per document.
func NewBroker(indexThrottle, previewInterval time.Duration) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}
	if previewInterval <= 0 {
		previewInterval = 50 * time.Millisecond
	}

	b := &Broker{
		indexMin:      indexThrottle,
		previewMin:    previewInterval,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		docEventCh:    make(chan docEventReq, 256),
		previewCh:     make(chan previewTime, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var lastIndex time.Time

	pending := make(map[string]float64)
	var flush <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, path := range clients {
			if path != "" && event.Path != "" && path != event.Path {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c.path

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.docEventCh:
			data := map[string]string{"path": req.path}
			switch req.kind {
			case "created":
				broadcast(Event{Type: TypeDocumentCreated, Path: req.path, Data: data})
			case "updated":
				broadcast(Event{Type: TypeDocumentUpdated, Path: req.path, Data: data})
			case "deleted":
				broadcast(Event{Type: TypeDocumentDeleted, Path: req.path, Data: data})
			}

			now := time.Now()
			if now.Sub(lastIndex) >= b.indexMin {
				lastIndex = now
				broadcast(Event{Type: TypeIndexUpdated, Data: map[string]string{}})
			}

		case pt := <-b.previewCh:
			pending[pt.path] = pt.time
			if flush == nil {
				flush = time.After(b.previewMin)
			}

		case <-flush:
			flush = nil
			for path, t := range pending {
				broadcast(Event{Type: TypePreviewTime, Path: path, Data: map[string]any{"path": path, "time": t}})
				delete(pending, path)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. A non-empty path limits
// document-scoped events to that document.
func (b *Broker) Subscribe(path string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{ch: ch, path: path}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishDocumentEvent publishes a document change and a throttled index.updated event.
// kind is one of "created", "updated", "deleted".
func (b *Broker) PublishDocumentEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.docEventCh <- docEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishPreviewTime records the playhead of a previewed document. Only
// the latest time per document is sent once per preview interval.
func (b *Broker) PublishPreviewTime(path string, t float64) {
	if b.closed.Load() {
		return
	}
	select {
	case b.previewCh <- previewTime{path: path, time: t}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events[?path=doc]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("path"))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
