package web

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/focuser/internal/focuser"
)

// Event kinds on the status stream.
const (
	KindLog    = "log"
	KindStatus = "status"
)

// Event is one SSE message: either a log line or a status snapshot.
type Event struct {
	Time   string          `json:"t"`
	Kind   string          `json:"kind"`
	Level  string          `json:"l,omitempty"`
	Msg    string          `json:"msg,omitempty"`
	Status *focuser.Status `json:"status,omitempty"`
}

// subscriberBuffer is the per-client queue length.
const subscriberBuffer = 64

// Broadcaster distributes events to multiple SSE clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives encoded events and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Subscribers returns the number of connected clients.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// publish sends evt to every client. Slow clients miss events rather than
// blocking the focuser.
func (b *Broadcaster) publish(evt Event) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Log broadcasts a log line.
func (b *Broadcaster) Log(level, msg string) {
	b.publish(Event{Kind: KindLog, Level: level, Msg: msg})
}

// Status broadcasts a controller snapshot. It matches the signature of
// focuser.Controller.OnUpdate.
func (b *Broadcaster) Status(st focuser.Status) {
	b.publish(Event{Kind: KindStatus, Status: &st})
}

// LogWriter returns an io.Writer for debug.SetOutput; each Write is
// broadcast as one log event.
func LogWriter(b *Broadcaster) io.Writer {
	return &logWriter{b: b}
}

type logWriter struct {
	b *Broadcaster
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Log(levelOf(msg), msg)
	}
	return len(p), nil
}

var levelTags = []string{"ERROR", "INFO", "LIVE", "VERBOSE", "TRACE", "GPIO"}

// levelOf extracts the level tag written by the debug package.
func levelOf(msg string) string {
	for _, tag := range levelTags {
		if strings.Contains(msg, "["+tag+"]") {
			return strings.ToLower(tag)
		}
	}
	return "info"
}
