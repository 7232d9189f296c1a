package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/portfolio-core/internal/store"
)

// sseKeepAlive is how often an idle stream gets a comment line.
const sseKeepAlive = 25 * time.Second

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteComment sends a comment line, used as a keep-alive.
func (s *SSEWriter) WriteComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// storeEventPayload is the data of a streamed store event.
type storeEventPayload struct {
	store.Event
	Error string `json:"error,omitempty"`
}

// handleEvents streams store notifications so editor surfaces can refresh
// after local and cross-process changes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events := make(chan store.Event, 32)
	unsubscribe := s.store.Subscribe(func(ev store.Event) {
		select {
		case events <- ev:
		default:
			log.Printf("[SSE] Dropped %s event for slow client %s", ev.Type, r.RemoteAddr)
		}
	})
	defer unsubscribe()

	w.WriteHeader(http.StatusOK)
	if err := sse.WriteEvent("ready", map[string]any{
		"lastUpdated": s.store.LastUpdated(),
		"loading":     s.store.IsLoading(),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		case ev := <-events:
			payload := storeEventPayload{Event: ev}
			if ev.Err != nil {
				payload.Error = ev.Err.Error()
			}
			if err := sse.WriteEvent(string(ev.Type), payload); err != nil {
				return
			}
		}
	}
}
