package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/common"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API carries no cookies or credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams a run's progress as JSON websocket messages. The
// stream ends with a status event once the run is COMPLETED or FAILED.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := runIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	runID := id.String()

	// Subscribe before reading the status so a finish in between is not missed.
	events, cancel := s.hub.Subscribe(runID)
	defer cancel()

	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws.upgrade.failed", "run_id", runID, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()
	reqID := common.RequestIDFromContext(r.Context())
	s.logger.Info("ws.subscribed", "run_id", runID, "req_id", reqID)

	send := func(ev Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}
	closeStream := func() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
	}

	if constants.RunStatus(run.Status).Terminal() {
		_ = send(Event{Type: EventStatus, RunID: runID, Status: run.Status, Stats: run.Stats, Error: deref(run.ErrorMessage)})
		closeStream()
		return
	}
	if err := send(Event{Type: EventStatus, RunID: runID, Status: run.Status}); err != nil {
		return
	}

	// Reader: handles pongs and notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			s.logger.Info("ws.client_gone", "run_id", runID, "req_id", reqID)
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				closeStream()
				return
			}
			if err := send(ev); err != nil {
				s.logger.Warn("ws.write.failed", "run_id", runID, "error", err)
				return
			}
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
