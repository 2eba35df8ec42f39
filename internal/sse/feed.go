// Package sse streams pre-order events to back-office browsers.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ms-preorder/internal/auth"
	"ms-preorder/internal/events"
	"ms-preorder/internal/logger"
)

const clientBuffer = 10

// Feed fans bus events out to connected clients. Clients either follow
// everything or only the pre-orders created by one admin.
type Feed struct {
	// key: admin username, "" for clients following every event
	clients     map[string][]chan events.Event
	clientMutex sync.RWMutex
	logger      *logger.Logger
}

func NewFeed(log *logger.Logger) *Feed {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Feed{clients: make(map[string][]chan events.Event), logger: log}
}

// Subscribe registers a client until ctx is done. The returned channel is
// closed on unsubscribe.
func (f *Feed) Subscribe(ctx context.Context, admin string) <-chan events.Event {
	ch := make(chan events.Event, clientBuffer)

	f.clientMutex.Lock()
	f.clients[admin] = append(f.clients[admin], ch)
	f.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(admin, ch)
	}()
	return ch
}

// Handle is subscribed to the event bus.
func (f *Feed) Handle(_ context.Context, e events.Event) error {
	f.clientMutex.RLock()
	defer f.clientMutex.RUnlock()

	f.send(f.clients[""], e)
	if created, ok := e.(events.PreOrderCreated); ok && created.Admin != "" {
		f.send(f.clients[created.Admin], e)
	}
	return nil
}

func (f *Feed) send(clients []chan events.Event, e events.Event) {
	for _, ch := range clients {
		// slow clients miss events rather than stall the bus
		select {
		case ch <- e:
		default:
			f.logger.Debug("SSE", fmt.Sprintf("client buffer full, dropped %s", e.EventName()))
		}
	}
}

func (f *Feed) remove(admin string, ch chan events.Event) {
	f.clientMutex.Lock()
	defer f.clientMutex.Unlock()

	clients := f.clients[admin]
	for i, c := range clients {
		if c == ch {
			f.clients[admin] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(f.clients[admin]) == 0 {
		delete(f.clients, admin)
	}
}

// ClientCount returns how many clients follow admin ("" for the global feed).
func (f *Feed) ClientCount(admin string) int {
	f.clientMutex.RLock()
	defer f.clientMutex.RUnlock()
	return len(f.clients[admin])
}

// ServeHTTP streams events until the client disconnects. With ?mine=1 only
// pre-orders created by the calling admin are sent.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	admin := ""
	if r.URL.Query().Get("mine") == "1" {
		admin = auth.Username(r.Context())
		if admin == "" {
			http.Error(w, "Unauthorized access", http.StatusUnauthorized)
			return
		}
	}

	// streams outlive the server write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		f.logger.Warn("SSE", fmt.Sprintf("could not clear write deadline: %v", err))
	}

	ctx := r.Context()
	setupHeaders(w)
	stream := f.Subscribe(ctx, admin)

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()
	f.logger.Info("SSE", fmt.Sprintf("client connected to pre-order feed (admin=%q)", admin))

	for {
		select {
		case e, ok := <-stream:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				f.logger.Error("SSE", fmt.Sprintf("Failed to serialize %s: %v", e.EventName(), err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventName(), data)
			flusher.Flush()
		case <-ctx.Done():
			f.logger.Debug("SSE", "client disconnected from pre-order feed")
			return
		}
	}
}

func setupHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
}
