package domain

import (
	"encoding/json"
	"time"
)

// FrameType discriminates the JSON frames exchanged over the socket.
type FrameType string

const (
	FrameTypeHistory    FrameType = "history"
	FrameTypeConnect    FrameType = "connect"
	FrameTypePeerList   FrameType = "peerList"
	FrameTypeChat       FrameType = "chat"
	FrameTypeSignal     FrameType = "signal"
	FrameTypeDisconnect FrameType = "disconnect"
)

// Envelope carries only the discriminator; it is decoded first to pick the
// concrete frame type.
type Envelope struct {
	Type FrameType `json:"type"`
}

// HistoryFrame is sent once per connection, immediately after accept.
type HistoryFrame struct {
	Type     FrameType `json:"type"`
	Messages []Message `json:"messages"`
}

// ConnectFrame binds a username to a connection (client to server) and
// announces a new peer to everyone else (server to clients).
type ConnectFrame struct {
	Type     FrameType `json:"type"`
	Username string    `json:"username"`
}

// PeerListFrame tells a freshly identified connection who else is online.
type PeerListFrame struct {
	Type  FrameType `json:"type"`
	Peers []string  `json:"peers"`
}

// ChatFrame carries a chat message. Inbound frames have only Sender and
// Content set; the broadcast form includes the store-assigned ID and
// Timestamp.
type ChatFrame struct {
	Type      FrameType `json:"type"`
	ID        int64     `json:"id,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// SignalFrame is relayed verbatim between two named peers. Payload is
// opaque to the server.
type SignalFrame struct {
	Type    FrameType       `json:"type"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// DisconnectFrame announces that a peer went offline.
type DisconnectFrame struct {
	Type     FrameType `json:"type"`
	Username string    `json:"username"`
}

func NewHistoryFrame(messages []Message) HistoryFrame {
	if messages == nil {
		messages = []Message{}
	}
	return HistoryFrame{Type: FrameTypeHistory, Messages: messages}
}

func NewConnectFrame(username string) ConnectFrame {
	return ConnectFrame{Type: FrameTypeConnect, Username: username}
}

func NewPeerListFrame(peers []string) PeerListFrame {
	if peers == nil {
		peers = []string{}
	}
	return PeerListFrame{Type: FrameTypePeerList, Peers: peers}
}

func NewChatFrame(msg Message) ChatFrame {
	return ChatFrame{
		Type:      FrameTypeChat,
		ID:        msg.ID,
		Sender:    msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

func NewSignalFrame(from, to string, payload json.RawMessage) SignalFrame {
	return SignalFrame{Type: FrameTypeSignal, From: from, To: to, Payload: payload}
}

func NewDisconnectFrame(username string) DisconnectFrame {
	return DisconnectFrame{Type: FrameTypeDisconnect, Username: username}
}
