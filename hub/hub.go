// Package hub implements the signaling protocol: it registers usernames,
// persists and fans out chat messages, and relays opaque signaling payloads
// between named peers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/parleyhq/parley/domain"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/registry"
	"github.com/parleyhq/parley/store"
)

var (
	// ErrEmptyUsername is returned when a connect frame carries no username.
	ErrEmptyUsername = errors.New("connect frame without username")

	// ErrInvalidChat is returned when a chat frame is missing sender or content.
	ErrInvalidChat = errors.New("chat frame with empty sender or content")

	// ErrUnknownRecipient is returned when a signal targets an unregistered name.
	ErrUnknownRecipient = errors.New("signal target is not registered")
)

type eventKind int

const (
	eventFrame eventKind = iota
	eventClosed
)

type event struct {
	kind   eventKind
	client domain.Client
	raw    []byte
}

// Hub processes all protocol events on a single goroutine, so the registry
// is never mutated concurrently. Broadcasts are best effort: a failed send
// to one client never aborts delivery to the rest.
type Hub struct {
	events   chan event
	registry *registry.Registry
	store    store.MessageStore
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(messages store.MessageStore, logger *logging.Logger) *Hub {
	return &Hub{
		events:   make(chan event),
		registry: registry.New(),
		store:    messages,
		logger:   logger,
	}
}

func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go h.run()
	h.logger.Info("hub started")
	return nil
}

func (h *Hub) Stop() error {
	h.logger.Info("stopping hub")
	h.cancel()
	h.wg.Wait()

	for _, client := range h.registry.Clients() {
		if err := client.Close(); err != nil {
			h.logger.Debug("failed to close client", "client_id", client.ID(), "error", err)
		}
	}

	h.logger.Info("hub stopped")
	return nil
}

// HandleFrame queues one inbound frame for processing. It blocks until the
// event loop picks the frame up, which keeps per-connection frame order.
func (h *Hub) HandleFrame(c domain.Client, raw []byte) {
	select {
	case h.events <- event{kind: eventFrame, client: c, raw: raw}:
	case <-h.ctx.Done():
	}
}

// ConnectionClosed queues the close event for a connection. Safe to call
// even when the connection was superseded or never identified itself.
func (h *Hub) ConnectionClosed(c domain.Client) {
	select {
	case h.events <- event{kind: eventClosed, client: c}:
	case <-h.ctx.Done():
	}
}

// History builds the history frame from the store. It reads only the store,
// never the registry, so the accept path can call it before the connection
// is known to the event loop.
func (h *Hub) History(ctx context.Context) (domain.HistoryFrame, error) {
	messages, err := h.store.ListAll(ctx)
	if err != nil {
		return domain.HistoryFrame{}, err
	}
	return domain.NewHistoryFrame(messages), nil
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-h.events:
			if err := h.dispatch(ev); err != nil {
				h.logger.Warn("dropping event", "client_id", ev.client.ID(), "error", err)
			}
		}
	}
}

// dispatch routes one event to its handler. A non-nil error means the
// event was dropped without changing any state besides the log.
func (h *Hub) dispatch(ev event) error {
	if ev.kind == eventClosed {
		h.handleClosed(ev.client)
		return nil
	}

	var envelope domain.Envelope
	if err := json.Unmarshal(ev.raw, &envelope); err != nil {
		return fmt.Errorf("malformed frame: %w", err)
	}

	switch envelope.Type {
	case domain.FrameTypeConnect:
		return h.handleConnect(ev.client, ev.raw)
	case domain.FrameTypeChat:
		return h.handleChat(ev.client, ev.raw)
	case domain.FrameTypeSignal:
		return h.handleSignal(ev.client, ev.raw)
	default:
		return fmt.Errorf("frame of unknown type %q", envelope.Type)
	}
}

func (h *Hub) handleConnect(c domain.Client, raw []byte) error {
	var frame domain.ConnectFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("malformed connect frame: %w", err)
	}

	if frame.Username == "" {
		return ErrEmptyUsername
	}

	if superseded := h.registry.Register(frame.Username, c); superseded != nil {
		h.logger.Info("replacing existing connection for username",
			"username", frame.Username,
			"old_client_id", superseded.ID(),
			"new_client_id", c.ID(),
		)
		if err := superseded.Close(); err != nil {
			h.logger.Debug("failed to close superseded connection", "error", err)
		}
	}

	h.logger.Info("user connected",
		"username", frame.Username,
		"client_id", c.ID(),
		"total_clients", h.registry.Len(),
	)

	peerList, err := json.Marshal(domain.NewPeerListFrame(h.registry.Others(frame.Username)))
	if err != nil {
		return fmt.Errorf("marshal peer list: %w", err)
	}
	if err := c.Send(h.ctx, peerList); err != nil {
		h.logger.Warn("failed to send peer list", "username", frame.Username, "error", err)
	}

	announce, err := json.Marshal(domain.NewConnectFrame(frame.Username))
	if err != nil {
		return fmt.Errorf("marshal connect announcement: %w", err)
	}
	h.broadcast(announce, c)
	return nil
}

func (h *Hub) handleChat(c domain.Client, raw []byte) error {
	var frame domain.ChatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("malformed chat frame: %w", err)
	}

	if frame.Sender == "" || frame.Content == "" {
		return ErrInvalidChat
	}

	msg, err := h.store.Append(h.ctx, frame.Sender, frame.Content)
	if err != nil {
		return fmt.Errorf("persist chat from %q: %w", frame.Sender, err)
	}

	out, err := json.Marshal(domain.NewChatFrame(msg))
	if err != nil {
		return fmt.Errorf("marshal chat frame: %w", err)
	}

	// Everyone gets the message, the sender's own connection included;
	// clients deduplicate their local echo by message id.
	delivered := h.broadcast(out, nil)

	h.logger.Debug("chat broadcast",
		"id", msg.ID,
		"sender", msg.Sender,
		"delivered", delivered,
	)
	return nil
}

func (h *Hub) handleSignal(c domain.Client, raw []byte) error {
	var frame domain.SignalFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("malformed signal frame: %w", err)
	}

	target, ok := h.registry.Lookup(frame.To)
	if !ok {
		return fmt.Errorf("signal from %q to %q: %w", frame.From, frame.To, ErrUnknownRecipient)
	}

	// The payload is never inspected; the original bytes go through as is.
	if err := target.Send(h.ctx, raw); err != nil {
		return fmt.Errorf("forward signal from %q to %q: %w", frame.From, frame.To, err)
	}

	h.logger.Debug("signal forwarded", "from", frame.From, "to", frame.To)
	return nil
}

func (h *Hub) handleClosed(c domain.Client) {
	username, owned := h.registry.Unregister(c)
	if !owned {
		// Either never identified, or a newer connection took the name;
		// in both cases the peer is not gone from anyone's point of view.
		h.logger.Debug("connection closed without active registration", "client_id", c.ID())
		return
	}

	h.logger.Info("user disconnected",
		"username", username,
		"client_id", c.ID(),
		"total_clients", h.registry.Len(),
	)

	announce, err := json.Marshal(domain.NewDisconnectFrame(username))
	if err != nil {
		h.logger.Error("failed to marshal disconnect announcement", "error", err)
		return
	}
	h.broadcast(announce, nil)
}

// broadcast sends raw to every registered connection except skip and
// returns how many sends succeeded. Individual failures are logged and
// swallowed.
func (h *Hub) broadcast(raw []byte, skip domain.Client) int {
	delivered := 0
	for _, client := range h.registry.Clients() {
		if skip != nil && client.ID() == skip.ID() {
			continue
		}
		if err := client.Send(h.ctx, raw); err != nil {
			h.logger.Warn("failed to deliver frame", "client_id", client.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
