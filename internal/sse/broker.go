// Package sse implements a Server-Sent Events broker for inventory updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/sm/internal/index"
)

// Event types sent to clients.
const (
	TypePackageInstalled = "package.installed"
	TypePackageUpdated   = "package.updated"
	TypePackageRemoved   = "package.removed"
	TypeInventoryUpdated = "inventory.updated"
)

// keepAlive is how often an idle stream receives a comment line.
const keepAlive = 25 * time.Second

// clientBuffer is the number of undelivered frames a client may lag behind.
const clientBuffer = 64

// Event is one frame broadcast to every subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var packageEventTypes = map[string]string{
	index.KindInstalled: TypePackageInstalled,
	index.KindUpdated:   TypePackageUpdated,
	index.KindRemoved:   TypePackageRemoved,
}

// hub is the state owned by the broker loop. Only functions passed through
// Broker.do touch it.
type hub struct {
	clients       map[chan []byte]struct{}
	seq           uint64
	throttle      time.Duration
	lastInventory time.Time
}

// send frames an event with the next sequence id and offers it to every
// client. Clients whose buffer is full miss the frame.
func (h *hub) send(typ string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	h.seq++
	frame := []byte(fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", typ, h.seq, payload))
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// inventoryChanged emits inventory.updated unless one went out within the throttle window.
func (h *hub) inventoryChanged(now time.Time) {
	if now.Sub(h.lastInventory) < h.throttle {
		return
	}
	h.lastInventory = now
	h.send(TypeInventoryUpdated, map[string]string{})
}

// Broker fans inventory events out to SSE clients. A single goroutine owns
// the hub; every public method hands it a closure over an unbuffered channel,
// so an accepted operation always runs before the broker stops.
type Broker struct {
	ops    chan func(*hub)
	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker creates a broker that emits inventory.updated at most once per throttle.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		ops:  make(chan func(*hub)),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go b.loop(&hub{clients: make(map[chan []byte]struct{}), throttle: throttle})
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do runs op on the broker goroutine. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the broker and closes every subscriber channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.done
}

// Subscribe registers a client. The channel is closed by Unsubscribe or Close,
// and comes back already closed when the broker is gone.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.do(func(h *hub) { n <- len(h.clients) }) {
		return 0
	}
	return <-n
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.do(func(h *hub) { h.send(event.Type, event.Data) })
}

// PublishPackageEvent publishes an index change (one of the index.Kind
// constants) followed by a throttled inventory.updated. It has the shape of
// index.EventCallback. Unknown kinds are ignored.
func (b *Broker) PublishPackageEvent(kind, path string) {
	typ, ok := packageEventTypes[kind]
	if !ok {
		return
	}
	b.do(func(h *hub) {
		h.send(typ, map[string]string{"path": path})
		h.inventoryChanged(time.Now())
	})
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
