// Package wsclient is a small client for the game websocket. Requests are
// correlated with their replies through the frame id echoed in replyTo.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"jass-lite/apps/server/internal/codec"

	"github.com/gorilla/websocket"
)

const (
	eventBufferSize = 1024
	writeWait       = 10 * time.Second
)

var ErrClosed = errors.New("wsclient: connection closed")

type Client struct {
	conn   *websocket.Conn
	token  string
	nextID atomic.Uint64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *codec.ServerEnvelope
	matchID string

	events    chan *codec.ServerEnvelope
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial opens a connection to url, authenticating with a Bearer token.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		token:   token,
		pending: make(map[uint64]chan *codec.ServerEnvelope),
		events:  make(chan *codec.ServerEnvelope, eventBufferSize),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events yields every frame the server sends, replies included.
func (c *Client) Events() <-chan *codec.ServerEnvelope {
	return c.events
}

// Done is closed when the connection drops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the read loop stopped.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// MatchID is the last match id seen on an inbound frame.
func (c *Client) MatchID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matchID
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		env, err := codec.DecodeServer(data)
		if err != nil {
			log.Printf("[Client] Dropping undecodable frame: %v", err)
			continue
		}

		c.mu.Lock()
		if env.MatchID != "" {
			c.matchID = env.MatchID
		}
		var future chan *codec.ServerEnvelope
		if env.ReplyTo != 0 {
			future = c.pending[env.ReplyTo]
			delete(c.pending, env.ReplyTo)
		}
		c.mu.Unlock()

		if future != nil {
			future <- env
		}
		select {
		case c.events <- env:
		default:
			log.Printf("[Client] Event buffer full, dropping %s", env.Type)
		}
	}
}

// Send writes body under a fresh correlation id and returns it.
func (c *Client) Send(body codec.Inbound) (uint64, error) {
	id := c.nextID.Add(1)
	return id, c.SendRaw(id, c.token, body)
}

// SendRaw writes body with an explicit id and token.
func (c *Client) SendRaw(id uint64, token string, body codec.Inbound) error {
	data, err := codec.EncodeClient(id, token, c.MatchID(), body)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Request sends body and waits for the first frame that replies to it.
func (c *Client) Request(ctx context.Context, body codec.Inbound) (*codec.ServerEnvelope, error) {
	id := c.nextID.Add(1)
	future := make(chan *codec.ServerEnvelope, 1)
	c.mu.Lock()
	c.pending[id] = future
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	if err := c.SendRaw(id, c.token, body); err != nil {
		forget()
		return nil, err
	}

	select {
	case env := <-future:
		return env, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.done:
		forget()
		return nil, ErrClosed
	}
}

// WaitFor reads events until one of type typ arrives. Other frames are discarded.
func (c *Client) WaitFor(ctx context.Context, typ codec.MessageType) (*codec.ServerEnvelope, error) {
	for {
		select {
		case env := <-c.events:
			if env.Type == typ {
				return env, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", typ, ctx.Err())
		case <-c.done:
			// drain what arrived before the close
			select {
			case env := <-c.events:
				if env.Type == typ {
					return env, nil
				}
				continue
			default:
			}
			return nil, ErrClosed
		}
	}
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
