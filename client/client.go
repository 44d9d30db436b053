// Package client is a Go counterpart to the browser client: it speaks the
// chat/signaling wire protocol and, via Peer, can establish direct WebRTC
// connections through the relay.
package client

import (
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/domain"
	"github.com/parleyhq/parley/logging"
)

type Options struct {
	Logger           *logging.Logger
	HandshakeTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Logger:           logging.New(logging.Config{Level: "info", Format: "text"}),
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client dials the server, identifies itself, and dispatches inbound frames
// to the registered callbacks. The message cache is deduplicated by message
// id: the server echoes our own chat frames back, and a reconnect replays
// history that may overlap messages already seen.
type Client struct {
	url      url.URL
	username string
	options  Options
	logger   *logging.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	messages []domain.Message
	seen     map[int64]struct{}
	peers    []string

	onChat           func(domain.Message)
	onPeerList       func([]string)
	onPeerConnect    func(string)
	onPeerDisconnect func(string)
	onSignal         func(domain.SignalFrame)

	done chan struct{}
}

func New(u url.URL, username string, options Options) *Client {
	return &Client{
		url:      u,
		username: username,
		options:  options,
		logger:   options.Logger,
		seen:     make(map[int64]struct{}),
		done:     make(chan struct{}),
	}
}

func (c *Client) OnChat(fn func(domain.Message))       { c.onChat = fn }
func (c *Client) OnPeerList(fn func([]string))         { c.onPeerList = fn }
func (c *Client) OnPeerConnect(fn func(string))        { c.onPeerConnect = fn }
func (c *Client) OnPeerDisconnect(fn func(string))     { c.onPeerDisconnect = fn }
func (c *Client) OnSignal(fn func(domain.SignalFrame)) { c.onSignal = fn }

// Connect dials the server, sends the connect frame, and starts the read
// loop. Callbacks must be registered before Connect.
func (c *Client) Connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: c.options.HandshakeTimeout}

	conn, _, err := dialer.Dial(c.url.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.writeFrame(domain.NewConnectFrame(c.username)); err != nil {
		conn.Close()
		return err
	}

	go c.readLoop()

	c.logger.Info("connected", "server", c.url.String(), "username", c.username)
	return nil
}

func (c *Client) Username() string {
	return c.username
}

// Done is closed once the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	if c.conn == nil {
		return errors.New("not connected")
	}
	return c.conn.Close()
}

func (c *Client) SendChat(content string) error {
	return c.writeFrame(domain.ChatFrame{
		Type:    domain.FrameTypeChat,
		Sender:  c.username,
		Content: content,
	})
}

func (c *Client) SendSignal(to string, payload json.RawMessage) error {
	return c.writeFrame(domain.NewSignalFrame(c.username, to, payload))
}

// Messages returns the deduplicated message cache in arrival order.
func (c *Client) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Peers returns the usernames currently believed to be online.
func (c *Client) Peers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.peers))
	copy(out, c.peers)
	return out
}

func (c *Client) writeFrame(frame any) error {
	if c.conn == nil {
		return errors.New("not connected")
	}

	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Info("connection closed", "error", err)
			return
		}

		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	var envelope domain.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Warn("ignoring malformed frame", "error", err)
		return
	}

	switch envelope.Type {
	case domain.FrameTypeHistory:
		var frame domain.HistoryFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("ignoring malformed history frame", "error", err)
			return
		}
		c.mu.Lock()
		c.messages = frame.Messages
		c.seen = make(map[int64]struct{}, len(frame.Messages))
		for _, msg := range frame.Messages {
			c.seen[msg.ID] = struct{}{}
		}
		c.mu.Unlock()

	case domain.FrameTypeChat:
		var frame domain.ChatFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("ignoring malformed chat frame", "error", err)
			return
		}
		msg := domain.Message{
			ID:        frame.ID,
			Sender:    frame.Sender,
			Content:   frame.Content,
			Timestamp: frame.Timestamp,
		}
		c.mu.Lock()
		if _, dup := c.seen[msg.ID]; dup {
			c.mu.Unlock()
			return
		}
		c.seen[msg.ID] = struct{}{}
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
		if c.onChat != nil {
			c.onChat(msg)
		}

	case domain.FrameTypePeerList:
		var frame domain.PeerListFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("ignoring malformed peer list frame", "error", err)
			return
		}
		c.mu.Lock()
		c.peers = frame.Peers
		c.mu.Unlock()
		if c.onPeerList != nil {
			c.onPeerList(frame.Peers)
		}

	case domain.FrameTypeConnect:
		var frame domain.ConnectFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return
		}
		c.mu.Lock()
		c.addPeer(frame.Username)
		c.mu.Unlock()
		if c.onPeerConnect != nil {
			c.onPeerConnect(frame.Username)
		}

	case domain.FrameTypeDisconnect:
		var frame domain.DisconnectFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return
		}
		c.mu.Lock()
		c.removePeer(frame.Username)
		c.mu.Unlock()
		if c.onPeerDisconnect != nil {
			c.onPeerDisconnect(frame.Username)
		}

	case domain.FrameTypeSignal:
		var frame domain.SignalFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("ignoring malformed signal frame", "error", err)
			return
		}
		if c.onSignal != nil {
			c.onSignal(frame)
		}

	default:
		c.logger.Debug("ignoring frame of unknown type", "type", envelope.Type)
	}
}

func (c *Client) addPeer(username string) {
	for _, p := range c.peers {
		if p == username {
			return
		}
	}
	c.peers = append(c.peers, username)
}

func (c *Client) removePeer(username string) {
	for i, p := range c.peers {
		if p == username {
			c.peers = append(c.peers[:i], c.peers[i+1:]...)
			return
		}
	}
}
