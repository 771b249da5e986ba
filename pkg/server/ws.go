// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/overlay"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

const writeWait = 10 * time.Second

// inbound is one event from the browser agent
type inbound struct {
	Type       string             `json:"type"`
	Generation uint64             `json:"generation"`
	Units      []overlay.Unit     `json:"units,omitempty"`
	Click      overlay.ClickEvent `json:"click"`
	UnitID     string             `json:"unit_id,omitempty"`
	Text       string             `json:"text,omitempty"`
	Link       overlay.LinkClick  `json:"link"`
	Enabled    bool               `json:"enabled,omitempty"`
}

// outbound is one message for the browser agent
type outbound struct {
	Type       string                 `json:"type"`
	Generation uint64                 `json:"generation,omitempty"`
	Commands   []overlay.Command      `json:"commands,omitempty"`
	Decision   *overlay.NavDecision   `json:"decision,omitempty"`
	Preview    *session.PreviewResult `json:"preview,omitempty"`
	Status     *status.Status         `json:"status,omitempty"`
	Changes    *changesView           `json:"changes,omitempty"`
}

// 🔌 client is one connected agent. Writes are serialized.
type client struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *client) send(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// hub fans controller notifications out to every connected agent
type hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub(log zerolog.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameHost,
		},
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// sameHost accepts requests without an Origin header and those whose origin
// host matches the request host
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (h *hub) add(ws *websocket.Conn) *client {
	c := &client{ws: ws}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.ws.Close()
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg outbound) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			h.log.Debug().Err(err).Str("type", msg.Type).Msg("dropping overlay message")
		}
	}
}

// handleOverlay upgrades to the overlay channel and serves agent events until
// the socket closes
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	ws, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("overlay upgrade failed")
		return
	}
	c := s.hub.add(ws)
	defer s.hub.remove(c)

	origin := hostOrigin(r)
	snapshot := s.changes()
	if err := c.send(outbound{Type: "changes", Changes: &snapshot}); err != nil {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("overlay channel closed")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("ignoring malformed overlay message")
			continue
		}

		reply, err := s.dispatch(ctx, origin, msg)
		if errors.Is(err, overlay.ErrStaleSession) {
			logger.Debug().Str("type", msg.Type).Uint64("generation", msg.Generation).Msg("ignoring stale overlay event")
			continue
		}
		if err != nil {
			st := status.FromError(err)
			reply = &outbound{Type: "status", Generation: msg.Generation, Status: &st}
		}
		if reply == nil {
			continue
		}
		if err := c.send(*reply); err != nil {
			logger.Debug().Err(err).Msg("overlay reply failed")
			return
		}
	}
}

func commands(generation uint64, cmds []overlay.Command) *outbound {
	if len(cmds) == 0 {
		return nil
	}
	return &outbound{Type: "commands", Generation: generation, Commands: cmds}
}

// dispatch applies one agent event to the controller
func (s *Server) dispatch(ctx context.Context, origin string, msg inbound) (*outbound, error) {
	gen := msg.Generation
	switch msg.Type {
	case "resync":
		return nil, s.ctrl.QueueResync(gen, msg.Units)
	case "click":
		cmds, err := s.ctrl.Click(ctx, gen, msg.Click)
		return commands(gen, cmds), err
	case "input":
		return nil, s.ctrl.Input(ctx, gen, msg.UnitID, msg.Text)
	case "blur":
		cmds, err := s.ctrl.Blur(ctx, gen, msg.UnitID)
		return commands(gen, cmds), err
	case "deselect":
		cmds, err := s.ctrl.Deselect(gen)
		return commands(gen, cmds), err
	case "editing":
		return commands(s.ctrl.Generation(), s.ctrl.SetEditing(msg.Enabled)), nil
	case "navigate":
		res, err := s.ctrl.Navigate(ctx, gen, msg.Link, origin)
		if err != nil {
			return nil, err
		}
		return &outbound{Type: "navigate", Generation: gen, Decision: &res.Decision, Preview: res.Preview}, nil
	default:
		zerolog.Ctx(ctx).Debug().Str("type", msg.Type).Msg("unknown overlay message")
		return nil, nil
	}
}
