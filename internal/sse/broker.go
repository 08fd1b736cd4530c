// Package sse implements a Server-Sent Events broker for live note,
// settings and reminder updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/notes"
)

// Event types sent to clients.
const (
	TypeNoteCreated     = "note.created"
	TypeNoteUpdated     = "note.updated"
	TypeNoteDeleted     = "note.deleted"
	TypeStatsUpdated    = "stats.updated"
	TypeSettingsUpdated = "settings.updated"
	TypeReminderDue     = "reminder.due"
)

// heartbeat keeps idle connections open through proxies.
const heartbeat = 25 * time.Second

// clientBuffer is how many frames a slow client may fall behind before
// frames are dropped for it.
const clientBuffer = 64

// noteTypes maps notes.Observer kinds to event types.
var noteTypes = map[string]string{
	notes.EventCreated: TypeNoteCreated,
	notes.EventUpdated: TypeNoteUpdated,
	notes.EventDeleted: TypeNoteDeleted,
}

// Event is one message for every connected client. Data is sent as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteRef is the payload of note events.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// StatsFunc supplies the payload for stats.updated.
type StatsFunc func() models.Stats

type noteChange struct {
	eventType string
	ref       NoteRef
}

// Broker fans events out to /events subscribers.
//
// One goroutine owns the subscriber set and the time of the last stats
// push. Every exported method talks to it over channels.
type Broker struct {
	statsEvery time.Duration
	stats      StatsFunc

	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	changes chan noteChange
	count   chan chan int

	stop    chan struct{}
	done    chan struct{}
	closing atomic.Bool
}

// NewBroker creates a new SSE broker. Note events are followed by a
// stats.updated event at most once per statsThrottle; a nil stats disables
// those.
func NewBroker(statsThrottle time.Duration, stats StatsFunc) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = 2 * time.Second
	}

	b := &Broker{
		statsEvery: statsThrottle,
		stats:      stats,
		join:       make(chan chan []byte),
		leave:      make(chan chan []byte),
		events:     make(chan Event, 256),
		changes:    make(chan noteChange, 256),
		count:      make(chan chan int),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	go b.loop()
	return b
}

// frame encodes e in the text/event-stream wire format.
func frame(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

func (b *Broker) loop() {
	defer close(b.done)

	subs := make(map[chan []byte]struct{})
	var statsSent time.Time

	send := func(e Event) {
		msg, err := frame(e)
		if err != nil {
			return
		}
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				// dropped: slow client
			}
		}
	}

	for {
		select {
		case <-b.stop:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.join:
			subs[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case e := <-b.events:
			send(e)

		case c := <-b.changes:
			send(Event{Type: c.eventType, Data: c.ref})
			if b.stats == nil {
				continue
			}
			if now := time.Now(); now.Sub(statsSent) >= b.statsEvery {
				statsSent = now
				send(Event{Type: TypeStatsUpdated, Data: b.stats()})
			}

		case reply := <-b.count:
			reply <- len(subs)
		}
	}
}

// Close ends every stream and stops the loop. It is safe to call twice.
func (b *Broker) Close() {
	if b.closing.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.done
}

// Subscribe registers a client. The channel is closed when the client is
// unsubscribed or the broker closes.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closing.Load() {
		close(ch)
		return ch
	}

	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}

	return ch
}

// Unsubscribe drops ch and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closing.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount reports how many streams are open.
func (b *Broker) ClientCount() int {
	if b.closing.Load() {
		return 0
	}

	reply := make(chan int, 1)
	select {
	case b.count <- reply:
	case <-b.done:
		return 0
	}

	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// Publish queues event for every client.
func (b *Broker) Publish(event Event) {
	if b.closing.Load() {
		return
	}
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// PublishNoteEvent publishes a note change and a throttled stats.updated
// event. Its signature matches notes.Observer; unknown kinds are ignored.
func (b *Broker) PublishNoteEvent(kind string, n models.Note) {
	eventType, ok := noteTypes[kind]
	if !ok || b.closing.Load() {
		return
	}
	select {
	case b.changes <- noteChange{eventType: eventType, ref: NoteRef{ID: n.ID, Title: n.Title}}:
	case <-b.done:
	}
}

// ServeHTTP streams events to one client until it disconnects or the
// broker closes.
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
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	for {
		var msg []byte
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			msg = []byte(": ping\n\n")
		case m, open := <-ch:
			if !open {
				return
			}
			msg = m
		}
		_, _ = w.Write(msg)
		flusher.Flush()
	}
}
