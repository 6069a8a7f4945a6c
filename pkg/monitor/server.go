// Package monitor exposes the pipeline's event bus over a local websocket
// for debug/visualization tooling, matching spec.md §7's "observation
// surface" description of the bus's purpose.
package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/keathmilligan/flowstt-core/pkg/pipeline"
)

const writeTimeout = 5 * time.Second

// frame is the wire shape of one forwarded bus event.
type frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Server streams pipeline.Bus events to any number of connected websocket
// clients. Grounded on the inverse of the pack's client-side
// `websocket.Accept`/`wsjson` usage in
// pkg/providers/tts/lokutor_test.go's httptest server fixture.
type Server struct {
	bus    *pipeline.Bus
	logger pipeline.Logger
}

// New returns a Server that will forward events published on bus.
func New(bus *pipeline.Bus, logger pipeline.Logger) *Server {
	if logger == nil {
		logger = pipeline.NoOpLogger{}
	}
	return &Server{bus: bus, logger: logger}
}

// ServeHTTP upgrades the connection and streams bus events as JSON frames
// until the client disconnects or the request context is canceled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("monitor: accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	ch, id := s.bus.Subscribe()
	defer s.bus.Unsubscribe(id)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, frame{Type: string(evt.Type), Data: evt.Data})
			cancel()
			if err != nil {
				s.logger.Debug("monitor: write failed, dropping client", "err", err)
				return
			}
		}
	}
}
