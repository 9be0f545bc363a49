package apitest

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// handleProgress streams execution progress. Like the real server it rejects
// a missing token before the upgrade, closes with 1008 for unknown executions,
// sends the current snapshot first and counts client heartbeats.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != Token {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	id, _ := pathID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	e, ok := s.executions[id]
	if !ok {
		s.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	ch := make(chan core.Progress, 32)
	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[chan core.Progress]struct{})
	}
	s.subscribers[id][ch] = struct{}{}
	snapshot := progressOf(e)
	s.mu.Unlock()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			s.mu.Lock()
			s.heartbeats++
			s.mu.Unlock()
		}
	}()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers[id], ch)
		s.mu.Unlock()
		_ = conn.Close()
		<-readDone
	}()

	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}
	for {
		select {
		case p := <-ch:
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.done:
			return
		}
	}
}

// Push applies a progress update to an execution and sends it to every
// open stream of that execution.
func (s *Server) Push(id int64, p core.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.executions[id]; ok {
		e.Status = p.Status
		e.Processed = p.Processed
		e.Total = p.Total
		e.Success = p.Success
		e.Failed = p.Failed
	}
	s.broadcast(id, p)
}

// Subscribers returns the number of open progress streams for an execution.
func (s *Server) Subscribers(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[id])
}

// Heartbeats returns the number of heartbeat frames received on all streams.
func (s *Server) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeats
}

// broadcast must be called with s.mu held.
func (s *Server) broadcast(id int64, p core.Progress) {
	for ch := range s.subscribers[id] {
		select {
		case ch <- p:
		default:
		}
	}
}

func progressOf(e *core.Execution) core.Progress {
	return core.Progress{
		Status:    e.Status,
		Processed: e.Processed,
		Total:     e.Total,
		Success:   e.Success,
		Failed:    e.Failed,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
