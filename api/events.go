package api

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/sse"
)

const keepAliveInterval = 15 * time.Second

// handleEvents streams person lifecycle events to the client as SSE.
// The subscription lives until the client disconnects or the server
// shuts down.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	events, cancel := s.feed.Subscribe()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}

				data, err := json.Marshal(ev)
				if err != nil {
					s.logger.Warn("marshaling feed event", zap.Error(err))
					continue
				}

				if err := sse.WriteEvent(w, sse.Event{
					ID:   ev.EventID,
					Type: ev.EventType,
					Data: string(data),
				}); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					// Client went away.
					return
				}

			case <-keepAlive.C:
				if err := sse.WriteComment(w, "keep-alive"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
