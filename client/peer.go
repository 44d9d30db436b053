package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/parleyhq/parley/logging"
)

// Signal payload kinds. The server relays these blobs without looking at
// them; only the two peer endpoints construct and parse them.
const (
	payloadKindOffer     = "offer"
	payloadKindAnswer    = "answer"
	payloadKindCandidate = "candidate"
)

type signalPayload struct {
	Kind      string                     `json:"kind"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// PeerOptions represents options for a peer connection
type PeerOptions struct {
	ICEServers []webrtc.ICEServer
	Logger     *logging.Logger
}

// DefaultPeerOptions returns default options
func DefaultPeerOptions() PeerOptions {
	return PeerOptions{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Peer wraps one WebRTC peer connection negotiated through the relay. The
// send function carries signal payloads to the remote peer; inbound
// payloads are fed through HandleSignal.
type Peer struct {
	remote string
	pc     *webrtc.PeerConnection
	send   func(payload json.RawMessage) error
	logger *logging.Logger

	pendingCandidates []webrtc.ICECandidateInit
	candidatesMu      sync.Mutex

	onDataChannel func(*webrtc.DataChannel)
}

// NewPeer creates a peer connection toward the named remote peer.
func NewPeer(remote string, send func(payload json.RawMessage) error, options PeerOptions) (*Peer, error) {
	config := webrtc.Configuration{
		ICEServers: options.ICEServers,
	}

	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	p := &Peer{
		remote: remote,
		pc:     pc,
		send:   send,
		logger: options.Logger,
	}

	p.setupEventHandlers()

	return p, nil
}

// Remote returns the remote peer's username.
func (p *Peer) Remote() string {
	return p.remote
}

// Close closes the peer connection
func (p *Peer) Close() error {
	return p.pc.Close()
}

// OnDataChannel sets the handler for channels opened by the remote peer.
func (p *Peer) OnDataChannel(handler func(*webrtc.DataChannel)) {
	p.onDataChannel = handler
}

// ConnectionState returns the current connection state
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

// Call opens a data channel and sends the offer that starts negotiation.
func (p *Peer) Call(label string) (*webrtc.DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	if err := p.sendPayload(signalPayload{Kind: payloadKindOffer, SDP: &offer}); err != nil {
		return nil, err
	}

	p.logger.Debug("sent offer", "remote", p.remote)

	return dc, nil
}

// HandleSignal processes one signal payload from the remote peer.
func (p *Peer) HandleSignal(payload json.RawMessage) error {
	var sig signalPayload
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("failed to parse signal payload: %w", err)
	}

	switch sig.Kind {
	case payloadKindOffer:
		if sig.SDP == nil {
			return fmt.Errorf("offer payload without sdp")
		}
		return p.handleOffer(*sig.SDP)
	case payloadKindAnswer:
		if sig.SDP == nil {
			return fmt.Errorf("answer payload without sdp")
		}
		return p.setRemoteDescription(*sig.SDP)
	case payloadKindCandidate:
		if sig.Candidate == nil {
			return fmt.Errorf("candidate payload without candidate")
		}
		return p.addICECandidate(*sig.Candidate)
	default:
		return fmt.Errorf("unknown signal payload kind: %s", sig.Kind)
	}
}

func (p *Peer) handleOffer(offer webrtc.SessionDescription) error {
	if err := p.setRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	p.logger.Debug("sent answer", "remote", p.remote)

	return p.sendPayload(signalPayload{Kind: payloadKindAnswer, SDP: &answer})
}

func (p *Peer) setRemoteDescription(sdp webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(sdp); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	p.logger.Debug("set remote description", "remote", p.remote, "type", sdp.Type)

	p.processPendingCandidates()

	return nil
}

func (p *Peer) addICECandidate(candidate webrtc.ICECandidateInit) error {
	// Candidates can arrive before the offer/answer; hold them until the
	// remote description is in place.
	if p.pc.RemoteDescription() == nil {
		p.candidatesMu.Lock()
		p.pendingCandidates = append(p.pendingCandidates, candidate)
		p.candidatesMu.Unlock()
		p.logger.Debug("queued ICE candidate", "remote", p.remote)
		return nil
	}

	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}

	return nil
}

func (p *Peer) sendPayload(sig signalPayload) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signal payload: %w", err)
	}
	return p.send(payload)
}

func (p *Peer) setupEventHandlers() {
	p.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}

		init := candidate.ToJSON()
		if err := p.sendPayload(signalPayload{Kind: payloadKindCandidate, Candidate: &init}); err != nil {
			p.logger.Error("failed to send ICE candidate", "remote", p.remote, "error", err)
		}
	})

	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.logger.Info("data channel received", "remote", p.remote, "label", dc.Label())

		if p.onDataChannel != nil {
			p.onDataChannel(dc)
		}
	})

	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Info("connection state changed", "remote", p.remote, "state", state.String())
	})
}

func (p *Peer) processPendingCandidates() {
	p.candidatesMu.Lock()
	candidates := p.pendingCandidates
	p.pendingCandidates = nil
	p.candidatesMu.Unlock()

	for _, candidate := range candidates {
		if err := p.pc.AddICECandidate(candidate); err != nil {
			p.logger.Error("failed to add pending ICE candidate", "remote", p.remote, "error", err)
		}
	}
}
