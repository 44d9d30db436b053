package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/parleyhq/parley/client"
	"github.com/parleyhq/parley/domain"
	"github.com/parleyhq/parley/logging"
)

func main() {
	var (
		serverAddr = flag.String("server", "ws://localhost:3000/ws", "server websocket URL")
		username   = flag.String("username", "", "username to connect as")
		logLevel   = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *username == "" {
		log.Fatal("-username is required")
	}

	logger := logging.New(logging.Config{
		Level:  *logLevel,
		Format: "pretty",
	})

	serverURL, err := url.Parse(*serverAddr)
	if err != nil {
		log.Fatalf("invalid server URL: %v", err)
	}

	options := client.DefaultOptions()
	options.Logger = logger

	c := client.New(*serverURL, *username, options)
	peers := newPeerSet(c, logger)

	c.OnChat(func(msg domain.Message) {
		fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), msg.Sender, msg.Content)
	})
	c.OnPeerList(func(list []string) {
		fmt.Printf("online: %s\n", strings.Join(list, ", "))
	})
	c.OnPeerConnect(func(name string) {
		fmt.Printf("* %s joined\n", name)
	})
	c.OnPeerDisconnect(func(name string) {
		fmt.Printf("* %s left\n", name)
		peers.drop(name)
	})
	c.OnSignal(peers.handleSignal)

	if err := c.Connect(); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer c.Close()

	for _, msg := range c.Messages() {
		fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), msg.Sender, msg.Content)
	}

	fmt.Println("type a message and press enter; /call <peer> opens a direct channel; /quit exits")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/peers":
			fmt.Printf("online: %s\n", strings.Join(c.Peers(), ", "))
		case strings.HasPrefix(line, "/call "):
			target := strings.TrimSpace(strings.TrimPrefix(line, "/call "))
			if err := peers.call(target); err != nil {
				fmt.Printf("call failed: %v\n", err)
			}
		default:
			if err := c.SendChat(line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}

		select {
		case <-c.Done():
			fmt.Println("disconnected")
			return
		default:
		}
	}
}

// peerSet tracks one WebRTC peer per remote username.
type peerSet struct {
	mu     sync.Mutex
	peers  map[string]*client.Peer
	client *client.Client
	logger *logging.Logger
}

func newPeerSet(c *client.Client, logger *logging.Logger) *peerSet {
	return &peerSet{
		peers:  make(map[string]*client.Peer),
		client: c,
		logger: logger,
	}
}

func (ps *peerSet) get(remote string) (*client.Peer, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if p, ok := ps.peers[remote]; ok {
		return p, nil
	}

	options := client.DefaultPeerOptions()
	options.Logger = ps.logger

	p, err := client.NewPeer(remote, func(payload json.RawMessage) error {
		return ps.client.SendSignal(remote, payload)
	}, options)
	if err != nil {
		return nil, err
	}

	p.OnDataChannel(func(dc *webrtc.DataChannel) {
		wireDataChannel(remote, dc)
	})

	ps.peers[remote] = p
	return p, nil
}

func (ps *peerSet) drop(remote string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if p, ok := ps.peers[remote]; ok {
		p.Close()
		delete(ps.peers, remote)
	}
}

func (ps *peerSet) call(remote string) error {
	p, err := ps.get(remote)
	if err != nil {
		return err
	}

	dc, err := p.Call("chat")
	if err != nil {
		return err
	}

	wireDataChannel(remote, dc)
	return nil
}

func (ps *peerSet) handleSignal(frame domain.SignalFrame) {
	p, err := ps.get(frame.From)
	if err != nil {
		fmt.Printf("cannot negotiate with %s: %v\n", frame.From, err)
		return
	}

	if err := p.HandleSignal(frame.Payload); err != nil {
		fmt.Printf("negotiation with %s failed: %v\n", frame.From, err)
	}
}

func wireDataChannel(remote string, dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		fmt.Printf("* direct channel to %s open\n", remote)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fmt.Printf("(direct) %s: %s\n", remote, string(msg.Data))
	})
	dc.OnClose(func() {
		fmt.Printf("* direct channel to %s closed\n", remote)
	})
}
