package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/client"
	"github.com/parleyhq/parley/domain"
	"github.com/parleyhq/parley/hub"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/signal"
	"github.com/parleyhq/parley/store"
)

func newTestServer(t *testing.T) url.URL {
	t.Helper()

	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	h := hub.New(store.NewMemoryStore(), logger)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { h.Stop() })

	ws := signal.NewServer(h, logger, signal.DefaultServerOptions())
	srv := httptest.NewServer(http.HandlerFunc(ws.Handle))
	t.Cleanup(srv.Close)

	u, err := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	return *u
}

func quietOptions() client.Options {
	options := client.DefaultOptions()
	options.Logger = logging.New(logging.Config{Level: "error", Format: "text"})
	return options
}

func TestConnectAndChat(t *testing.T) {
	serverURL := newTestServer(t)

	alice := client.New(serverURL, "alice", quietOptions())
	aliceChats := make(chan domain.Message, 8)
	alice.OnChat(func(msg domain.Message) { aliceChats <- msg })
	require.NoError(t, alice.Connect())
	defer alice.Close()

	bob := client.New(serverURL, "bob", quietOptions())
	bobJoined := make(chan []string, 1)
	bob.OnPeerList(func(peers []string) { bobJoined <- peers })
	bobChats := make(chan domain.Message, 8)
	bob.OnChat(func(msg domain.Message) { bobChats <- msg })
	require.NoError(t, bob.Connect())
	defer bob.Close()

	select {
	case peers := <-bobJoined:
		assert.Equal(t, []string{"alice"}, peers)
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the peer list")
	}

	require.NoError(t, alice.SendChat("hi"))

	for name, ch := range map[string]chan domain.Message{"alice": aliceChats, "bob": bobChats} {
		select {
		case msg := <-ch:
			assert.Equal(t, int64(1), msg.ID)
			assert.Equal(t, "alice", msg.Sender)
			assert.Equal(t, "hi", msg.Content)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never received the chat message", name)
		}
	}

	messages := alice.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestMessageCacheDeduplicatesByID(t *testing.T) {
	serverURL := newTestServer(t)

	alice := client.New(serverURL, "alice", quietOptions())
	chats := make(chan domain.Message, 8)
	alice.OnChat(func(msg domain.Message) { chats <- msg })
	require.NoError(t, alice.Connect())
	defer alice.Close()

	require.NoError(t, alice.SendChat("only once"))

	select {
	case <-chats:
	case <-time.After(2 * time.Second):
		t.Fatal("chat echo never arrived")
	}

	// A second connection replays history containing the same id the
	// live broadcast already delivered.
	second := client.New(serverURL, "alice2", quietOptions())
	require.NoError(t, second.Connect())
	defer second.Close()

	require.Eventually(t, func() bool {
		return len(second.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, alice.Messages(), 1)
}

func TestPeerPresenceTracking(t *testing.T) {
	serverURL := newTestServer(t)

	alice := client.New(serverURL, "alice", quietOptions())
	joined := make(chan string, 4)
	left := make(chan string, 4)
	alice.OnPeerConnect(func(name string) { joined <- name })
	alice.OnPeerDisconnect(func(name string) { left <- name })
	require.NoError(t, alice.Connect())
	defer alice.Close()

	bob := client.New(serverURL, "bob", quietOptions())
	require.NoError(t, bob.Connect())

	select {
	case name := <-joined:
		assert.Equal(t, "bob", name)
	case <-time.After(2 * time.Second):
		t.Fatal("alice never saw bob join")
	}
	assert.Equal(t, []string{"bob"}, alice.Peers())

	require.NoError(t, bob.Close())

	select {
	case name := <-left:
		assert.Equal(t, "bob", name)
	case <-time.After(2 * time.Second):
		t.Fatal("alice never saw bob leave")
	}
	assert.Empty(t, alice.Peers())
}

func TestSignalRelayBetweenClients(t *testing.T) {
	serverURL := newTestServer(t)

	alice := client.New(serverURL, "alice", quietOptions())
	require.NoError(t, alice.Connect())
	defer alice.Close()

	bob := client.New(serverURL, "bob", quietOptions())
	signals := make(chan domain.SignalFrame, 1)
	bob.OnSignal(func(frame domain.SignalFrame) { signals <- frame })
	require.NoError(t, bob.Connect())
	defer bob.Close()

	// Give the server a moment to register bob before targeting him.
	require.Eventually(t, func() bool {
		return len(alice.Peers()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	payload := json.RawMessage(`{"kind":"offer","sdp":{"type":"offer","sdp":"v=0"}}`)
	require.NoError(t, alice.SendSignal("bob", payload))

	select {
	case frame := <-signals:
		assert.Equal(t, "alice", frame.From)
		assert.Equal(t, "bob", frame.To)
		assert.JSONEq(t, string(payload), string(frame.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the signal")
	}
}
