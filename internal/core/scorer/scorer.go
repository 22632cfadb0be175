// Package scorer talks to a local acoustic scoring sidecar over a
// websocket. The sidecar hosts the VAD and wake-phrase models; each
// PCM frame sent yields a JSON score message back.
package scorer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/narrator/internal/core/audio"
	"github.com/colonyops/narrator/internal/core/logging"
)

// ErrDisabled is returned once the sidecar has been marked unreachable.
// Callers treat it as "this acoustic subsystem is off", not a retry.
var ErrDisabled = errors.New("scorer: sidecar disabled")

const (
	writeTimeout = time.Second
	readTimeout  = 2 * time.Second
)

// Scores is the sidecar's verdict for one frame.
type Scores struct {
	VAD  float64            `json:"vad"`
	Wake map[string]float64 `json:"wake"`
}

// Client is a lazily-dialed websocket client for the scoring sidecar.
//
// Lifecycle: the first Score call dials. If that dial fails the client
// reports the error once and disables itself permanently; a mid-stream
// I/O error drops the connection and the next call redials.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	dialed   bool
	disabled bool
}

// New creates a Client for the given ws:// URL.
func New(url string) *Client {
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		log:    logging.Component("scorer"),
	}
}

// Score sends one frame and returns the sidecar's scores.
func (c *Client) Score(frame audio.Frame) (Scores, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return Scores{}, ErrDisabled
	}

	if c.conn == nil {
		if err := c.dial(); err != nil {
			return Scores{}, err
		}
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return Scores{}, c.dropConn(err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame.Bytes()); err != nil {
		return Scores{}, c.dropConn(err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return Scores{}, c.dropConn(err)
	}
	var s Scores
	if err := c.conn.ReadJSON(&s); err != nil {
		return Scores{}, c.dropConn(err)
	}
	return s, nil
}

// dial connects to the sidecar. A failure on the very first dial
// disables the client permanently: the model server isn't there, and
// per-frame retries would just spam the log.
func (c *Client) dial() error {
	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		if !c.dialed {
			c.disabled = true
			c.log.Error().Err(err).Str("url", c.url).
				Msg("acoustic scorer unreachable, voice features disabled")
			return fmt.Errorf("dial scorer: %w: %w", err, ErrDisabled)
		}
		return fmt.Errorf("redial scorer: %w", err)
	}
	c.dialed = true
	c.conn = conn
	return nil
}

// dropConn closes the current connection so the next Score redials.
func (c *Client) dropConn(err error) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	return fmt.Errorf("scorer io: %w", err)
}

// Disabled reports whether the sidecar was marked unreachable.
func (c *Client) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Close shuts the connection down.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
