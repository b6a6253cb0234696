// Package sse streams analysis events to Server-Sent Events clients.
package sse

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/textclust/pkg/models"
)

const (
	// QueueSize is the number of events buffered per client. A client whose
	// queue is full is disconnected rather than slowing down publishers.
	QueueSize = 32
	// HeartbeatInterval keeps idle connections open through proxies.
	HeartbeatInterval = 15 * time.Second
)

// message is one encoded SSE frame.
type message struct {
	event string
	data  []byte
	id    uint64
}

// Client is one connected stream.
type Client struct {
	queue     chan message
	Done      chan struct{}
	ID        string
	algorithm string // only events for this algorithm when set
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Done) })
}

// wants reports whether the client subscribed to events of algorithm.
func (c *Client) wants(algorithm string) bool {
	return c.algorithm == "" || c.algorithm == algorithm
}

// Broadcaster fans analysis events out to connected clients.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
	seq     atomic.Uint64
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers a client. algorithm filters the events it receives;
// empty means all.
func (b *Broadcaster) AddClient(algorithm string) *Client {
	b.mu.Lock()
	b.nextID++
	client := &Client{
		ID:        fmt.Sprintf("client-%d", b.nextID),
		queue:     make(chan message, QueueSize),
		Done:      make(chan struct{}),
		algorithm: algorithm,
	}
	b.clients[client.ID] = client
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", client.ID).Int("totalClients", count).Msg("SSE client connected")
	return client
}

// RemoveClient unregisters a client and closes its Done channel.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	_, exists := b.clients[client.ID]
	delete(b.clients, client.ID)
	count := len(b.clients)
	b.mu.Unlock()

	client.close()
	if exists {
		log.Debug().Str("clientId", client.ID).Int("totalClients", count).Msg("SSE client disconnected")
	}
}

// Publish queues event for every subscribed client. It never blocks; clients
// that fall QueueSize events behind are dropped.
func (b *Broadcaster) Publish(event models.AnalysisEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}
	msg := message{event: event.Type, data: data, id: b.seq.Add(1)}

	var slow []*Client
	b.mu.RLock()
	for _, client := range b.clients {
		if !client.wants(event.Algorithm) {
			continue
		}
		select {
		case client.queue <- msg:
		default:
			slow = append(slow, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range slow {
		log.Warn().Str("clientId", client.ID).Msg("SSE client too slow, disconnecting")
		b.RemoveClient(client)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*Client)
	b.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}

// HandleSSE streams events until the request ends or the client is dropped.
// The optional algorithm query parameter filters events.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := b.AddClient(r.URL.Query().Get("algorithm"))
	defer b.RemoveClient(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", client.ID)
	flusher.Flush()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg := <-client.queue:
			if err := writeMessage(w, msg); err != nil {
				log.Debug().Err(err).Str("clientId", client.ID).Msg("Failed to write to SSE client")
				return
			}
			flusher.Flush()
		}
	}
}

func writeMessage(w http.ResponseWriter, msg message) error {
	_, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", strconv.FormatUint(msg.id, 10), msg.event, msg.data)
	return err
}
