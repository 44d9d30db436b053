// Package signal owns the websocket endpoint: it upgrades connections,
// delivers the message history snapshot, and feeds inbound frames to the
// hub.
package signal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/parleyhq/parley/domain"
	"github.com/parleyhq/parley/hub"
	"github.com/parleyhq/parley/logging"
)

type ServerOptions struct {
	// ReadTimeout closes connections that stay silent (no frames, no
	// pongs) for this long. Zero disables the deadline, which suits
	// browser clients that idle between chat messages.
	ReadTimeout     time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		ReadTimeout:     0,
		MaxMessageSize:  512 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	logger   *logging.Logger
	options  ServerOptions
}

func NewServer(h *hub.Hub, logger *logging.Logger, options ServerOptions) *Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  options.ReadBufferSize,
		WriteBufferSize: options.WriteBufferSize,
	}

	return &Server{
		upgrader: upgrader,
		hub:      h,
		logger:   logger,
		options:  options,
	}
}

// Handle upgrades the request and runs the connection until its socket
// closes. Every connection receives the history frame before any of its
// frames are processed.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	client := domain.NewClient(xid.New().String(), conn)

	s.logger.Info("websocket connection established",
		"client_id", client.ID(),
		"remote_addr", r.RemoteAddr,
	)

	if err := s.sendHistory(r, client); err != nil {
		s.logger.Error("failed to send history", "client_id", client.ID(), "error", err)
		return
	}

	s.readPump(conn, client)

	s.hub.ConnectionClosed(client)
	s.logger.Info("websocket connection closed", "client_id", client.ID())
}

func (s *Server) sendHistory(r *http.Request, client domain.Client) error {
	history, err := s.hub.History(r.Context())
	if err != nil {
		return err
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return err
	}

	return client.Send(r.Context(), raw)
}

func (s *Server) readPump(conn *websocket.Conn, client domain.Client) {
	conn.SetReadLimit(s.options.MaxMessageSize)

	if s.options.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		})
	}

	for {
		wsType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "client_id", client.ID(), "error", err)
			}
			return
		}

		if wsType != websocket.TextMessage {
			continue
		}

		s.hub.HandleFrame(client, raw)
	}
}
