// Package livereload tells connected browsers to reload after a rebuild.
//
// Browsers load /livereload.js, which opens a server-sent-events stream at
// /livereload. Every message carries a token; the first token a client sees
// is its baseline and any different token triggers a full page reload.
// RefreshAll issues a new token, so a single call reloads every client once.
package livereload

import (
	"bufio"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

const heartbeatInterval = 30 * time.Second

// Hub manages SSE clients and broadcasts refresh tokens to them.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*client
	closed   bool
	token    string
	seq      uint64
	recorder metrics.Recorder
}

type client struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewHub creates a Hub. A nil recorder disables metrics.
func NewHub(recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Hub{
		clients:  map[int]*client{},
		token:    uuid.NewString(),
		recorder: recorder,
	}
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	current := h.token
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(n)
	defer h.removeClient(c.id)

	bw := bufio.NewWriter(w)
	if err := writeEvent(bw, current); err != nil {
		slog.Debug("livereload write", logfields.Error(err))
		return
	}
	_ = bw.Flush()
	flusher.Flush()

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				slog.Debug("livereload ping write", logfields.Error(err))
				return
			}
		case token := <-c.ch:
			if err := writeEvent(bw, token); err != nil {
				slog.Debug("livereload broadcast write", logfields.Error(err))
				return
			}
		}
		_ = bw.Flush()
		flusher.Flush()
	}
}

func writeEvent(bw *bufio.Writer, token string) error {
	_, err := bw.WriteString("data: {\"token\":\"" + token + "\"}\n\n")
	return err
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveReloadClients(n)
	}
}

// RefreshAll tells every connected client to reload. Clients whose buffers
// are full are dropped; they reconnect on their own.
func (h *Hub) RefreshAll() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.seq++
	h.token = strconv.FormatUint(h.seq, 10) + "-" + uuid.NewString()[:8]
	token := h.token
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- token:
		case <-c.done:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.recorder.IncRefresh()
	slog.Debug("livereload refresh", logfields.Clients(len(snapshot)), slog.Int("dropped", dropped))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects all clients and ignores further refreshes.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
