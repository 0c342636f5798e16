// Package sse broadcasts workspace changes to browser clients over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Entity kinds carried by change events.
const (
	EntityProject = "project"
	EntitySource  = "source"
	EntityTask    = "task"
	EntityNote    = "note"
)

// Change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// EventWorkspaceUpdated is the throttled summary event sent after changes.
const EventWorkspaceUpdated = "workspace.updated"

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Change describes a mutation of one workspace record.
type Change struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId,omitempty"`
}

type changeReq struct {
	entity string
	action string
	change Change
}

// Broker fans events out to subscribed clients.
//
// One goroutine owns the client set and the throttle timestamp; public
// methods talk to it over channels.
type Broker struct {
	throttle  time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. throttle bounds how often workspace.updated is
// emitted; it defaults to two seconds.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		throttle:      throttle,
		keepAlive:     30 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.loop()
	return b
}

func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload)), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastSummary time.Time

	send := func(ev Event) {
		raw, err := encode(ev)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client, drop the message.
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			send(ev)

		case req := <-b.changeCh:
			send(Event{Type: req.entity + "." + req.action, Data: req.change})
			if now := time.Now(); now.Sub(lastSummary) >= b.throttle {
				lastSummary = now
				send(Event{Type: EventWorkspaceUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker and closes every client channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribed clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
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

// Publish broadcasts ev as is.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishChange broadcasts "<entity>.<action>" followed, at most once per
// throttle interval, by workspace.updated.
func (b *Broker) PublishChange(entity, action string, c Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{entity: entity, action: action, change: c}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
