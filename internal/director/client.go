// Package director is the WebSocket transport to the Director service.
package director

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/deckster/internal/types"
)

// ErrClosed is returned by Send after the connection has been closed.
var ErrClosed = errors.New("director connection closed")

const writeTimeout = 10 * time.Second

// Options identify the session a connection is opened for.
type Options struct {
	URL       string
	SessionID types.SessionID
	UserID    types.UserID
	Token     string
}

// Endpoint returns the socket URL with the session and user attached as
// query parameters.
func (o Options) Endpoint() (string, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return "", fmt.Errorf("parse director url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid director url scheme %q", u.Scheme)
	}
	q := u.Query()
	if o.SessionID != "" {
		q.Set("session_id", string(o.SessionID))
	}
	if o.UserID != "" {
		q.Set("user_id", string(o.UserID))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type outbound struct {
	Type string          `json:"type"`
	Data outboundPayload `json:"data"`
}

type outboundPayload struct {
	Text string `json:"text"`
}

// Client is one open Director connection. Reads happen in Listen; Send is
// safe to call from any goroutine.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

var _ types.Transport = (*Client)(nil)

// Dial opens a connection for the given session.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	endpoint, err := opts.Endpoint()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial director: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial director: %w", err)
	}
	return &Client{
		conn:   conn,
		logger: slog.Default().With("component", "director", "session_id", string(opts.SessionID)),
		closed: make(chan struct{}),
	}, nil
}

// Listen decodes inbound frames and hands each event to handle until the
// connection closes or ctx is done. A clean shutdown returns nil.
func (c *Client) Listen(ctx context.Context, handle func(*types.AgentEvent)) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closed:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read director frame: %w", err)
		}

		var ev types.AgentEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		if ev.MessageID == "" {
			c.logger.Debug("ignoring frame without message id", "type", string(ev.Type))
			continue
		}
		handle(&ev)
	}
}

// Send writes a user message frame.
func (c *Client) Send(ctx context.Context, text string) error {
	if c.isClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(outbound{Type: types.UserMessageType, Data: outboundPayload{Text: text}})
	if err != nil {
		return fmt.Errorf("marshal user message: %w", err)
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if c.isClosed() {
			return ErrClosed
		}
		return fmt.Errorf("write user message: %w", err)
	}
	return nil
}

// Close sends a close frame and releases the connection. Safe to call more
// than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
