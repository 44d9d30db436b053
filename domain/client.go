package domain

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// A slow reader blocks writes to its socket; the deadline keeps one stuck
// client from stalling the hub loop.
const writeTimeout = 10 * time.Second

// Client is the send/close capability the hub holds for one connection.
type Client interface {
	// ID identifies the underlying connection, not the username. Two
	// connections claiming the same username have distinct IDs.
	ID() string

	Send(ctx context.Context, message []byte) error

	Close() error
}

type client struct {
	id   string
	conn *websocket.Conn
}

func NewClient(id string, conn *websocket.Conn) Client {
	return &client{
		id:   id,
		conn: conn,
	}
}

func (c *client) ID() string {
	return c.id
}

func (c *client) Send(ctx context.Context, message []byte) error {
	if c.conn == nil {
		return errors.New("connection is closed")
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (c *client) Close() error {
	if c.conn == nil {
		return errors.New("connection is closed")
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}
