package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotRunning = errors.New("no presence IPC endpoint is accepting connections")
	ErrClosed     = errors.New("presence client is closed")
)

const defaultTimeout = 10 * time.Second

type Activity struct {
	State      string
	Details    string
	StartedAt  time.Time
	LargeImage string
	LargeText  string
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type wireActivity struct {
	State      string          `json:"state,omitempty"`
	Details    string          `json:"details,omitempty"`
	Timestamps *wireTimestamps `json:"timestamps,omitempty"`
	Assets     *wireAssets     `json:"assets,omitempty"`
}

type wireTimestamps struct {
	Start int64 `json:"start,omitempty"`
}

type wireAssets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

type handshake struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string         `json:"cmd"`
	Args  map[string]any `json:"args"`
	Nonce string         `json:"nonce"`
}

type response struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (a Activity) wire() *wireActivity {
	w := &wireActivity{State: a.State, Details: a.Details}
	if !a.StartedAt.IsZero() {
		w.Timestamps = &wireTimestamps{Start: a.StartedAt.UnixMilli()}
	}
	if a.LargeImage != "" || a.LargeText != "" {
		w.Assets = &wireAssets{LargeImage: a.LargeImage, LargeText: a.LargeText}
	}
	return w
}

// Client is a connection to the chat client's local IPC endpoint. The caller
// owns it and must Close it; it is safe for concurrent use.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	pid    int
	closed bool
	User   User
}

// Dial connects to the first available IPC endpoint and completes the
// handshake for clientID.
func Dial(ctx context.Context, clientID string) (*Client, error) {
	var lastErr error
	for _, endpoint := range Endpoints() {
		conn, err := dialEndpoint(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		log.Debug().Str("op", "presence/client").Msgf("Connected to %s", endpoint)
		return NewClient(ctx, conn, clientID)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, lastErr)
	}
	return nil, ErrNotRunning
}

// NewClient performs the handshake over an established connection. The
// connection is closed if the handshake fails.
func NewClient(ctx context.Context, conn net.Conn, clientID string) (*Client, error) {
	if clientID == "" {
		conn.Close()
		return nil, errors.New("presence client ID is required")
	}
	c := &Client{conn: conn, pid: os.Getpid()}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDeadline(ctx)
	if err := WriteFrame(conn, OpHandshake, handshake{Version: 1, ClientID: clientID}); err != nil {
		conn.Close()
		return nil, err
	}
	resp, err := c.readResponse()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}
	if resp.Evt != "READY" {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: unexpected event %q", resp.Evt)
	}
	var ready struct {
		User User `json:"user"`
	}
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &ready); err != nil {
			log.Debug().Str("op", "presence/client").Err(err).Msg("Could not decode READY payload")
		}
	}
	c.User = ready.User
	log.Info().Str("op", "presence/client").Msgf("Presence connected as %s", c.User.Username)
	return c, nil
}

func (c *Client) setDeadline(ctx context.Context) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	c.conn.SetDeadline(deadline)
}

// readResponse answers pings and returns the next frame. A close frame from
// the peer is reported as an error carrying its message.
func (c *Client) readResponse() (*response, error) {
	for {
		op, body, err := ReadFrame(c.conn)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpPing:
			if err := writeRaw(c.conn, OpPong, body); err != nil {
				return nil, err
			}
			continue
		case OpClose:
			var closeErr errorData
			if err := json.Unmarshal(body, &closeErr); err != nil {
				log.Debug().Str("op", "presence/client").Err(err).Msg("Could not decode close payload")
			}
			return nil, fmt.Errorf("connection closed by peer (%d): %s", closeErr.Code, closeErr.Message)
		case OpFrame:
			var resp response
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("error decoding frame: %v", err)
			}
			return &resp, nil
		default:
			return nil, fmt.Errorf("unexpected opcode %d", op)
		}
	}
}

func (c *Client) call(ctx context.Context, cmd string, args map[string]any) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.setDeadline(ctx)
	nonce := uuid.NewString()
	if err := WriteFrame(c.conn, OpFrame, command{Cmd: cmd, Args: args, Nonce: nonce}); err != nil {
		return nil, err
	}
	resp, err := c.readResponse()
	if err != nil {
		return nil, err
	}
	if resp.Evt == "ERROR" {
		var data errorData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			log.Debug().Str("op", "presence/client").Err(err).Msgf("Could not decode %s error payload", cmd)
		}
		return nil, fmt.Errorf("%s rejected (%d): %s", cmd, data.Code, data.Message)
	}
	if resp.Nonce != nonce {
		return nil, fmt.Errorf("%s: reply nonce mismatch", cmd)
	}
	return resp, nil
}

func (c *Client) SetActivity(ctx context.Context, activity Activity) error {
	_, err := c.call(ctx, "SET_ACTIVITY", map[string]any{"pid": c.pid, "activity": activity.wire()})
	if err != nil {
		return fmt.Errorf("error setting activity: %w", err)
	}
	log.Debug().Str("op", "presence/client").Msgf("Activity set: %s", activity.State)
	return nil
}

func (c *Client) ClearActivity(ctx context.Context) error {
	_, err := c.call(ctx, "SET_ACTIVITY", map[string]any{"pid": c.pid, "activity": nil})
	if err != nil {
		return fmt.Errorf("error clearing activity: %w", err)
	}
	return nil
}

// Close says goodbye to the peer and closes the connection. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.SetDeadline(time.Now().Add(time.Second))
	if err := WriteFrame(c.conn, OpClose, map[string]any{}); err != nil {
		log.Debug().Str("op", "presence/client").Err(err).Msg("Could not send close frame")
	}
	return c.conn.Close()
}
