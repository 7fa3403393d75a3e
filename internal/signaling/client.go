// Package signaling is the client side of the relay connection: it routes
// inbound envelopes to typed channels and reconnects with a bounded, fixed
// backoff when the relay drops.
package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
)

type Status int

const (
	StatusConnected Status = iota
	StatusReconnecting
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "CONNECTED"
	case StatusReconnecting:
		return "RECONNECTING"
	case StatusDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

var ErrClosed = errors.New("signaling: client closed")

type Options struct {
	// URL is the relay websocket endpoint, e.g. ws://localhost:8080/ws.
	URL                  string
	Logger               *logrus.Logger
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	// OnStatus reports connection state changes, including the terminal
	// DISCONNECTED state once reconnection attempts are exhausted.
	OnStatus func(Status)
}

// Client owns one relay connection. Inbound envelopes are routed by event to
// the IDs, Peers and Signals channels; all three close once the client shuts
// down or reconnection gives up.
type Client struct {
	opts   Options
	logger *logrus.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	ids     chan string
	peers   chan []string
	signals chan protocol.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

func Dial(opts Options) (*Client, error) {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = protocol.DefaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = protocol.DefaultMaxReconnectAttempts
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	conn, _, err := websocket.DefaultDialer.Dial(opts.URL, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts:    opts,
		logger:  log,
		conn:    conn,
		ids:     make(chan string, 1),
		peers:   make(chan []string, 16),
		signals: make(chan protocol.Envelope, 16),
		done:    make(chan struct{}),
	}

	c.setStatus(StatusConnected)
	go c.readLoop()
	return c, nil
}

// IDs delivers the relay-assigned endpoint identifier, once per (re)connect.
func (c *Client) IDs() <-chan string { return c.ids }

// Peers delivers every peer-set push from the relay.
func (c *Client) Peers() <-chan []string { return c.peers }

// Signals delivers offer, answer and ice-candidate envelopes.
func (c *Client) Signals() <-chan protocol.Envelope { return c.signals }

func (c *Client) Discover() error {
	return c.write(protocol.BuildDiscoverEnvelope())
}

func (c *Client) SendOffer(targetID string, payload json.RawMessage) error {
	return c.write(protocol.BuildOfferEnvelope(targetID, payload))
}

func (c *Client) SendAnswer(targetID string, payload json.RawMessage) error {
	return c.write(protocol.BuildAnswerEnvelope(targetID, payload))
}

func (c *Client) SendCandidate(targetID string, payload json.RawMessage) error {
	return c.write(protocol.BuildCandidateEnvelope(targetID, payload))
}

func (c *Client) write(env protocol.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

// Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.Close()
		c.writeMu.Unlock()
	})
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		close(c.ids)
		close(c.peers)
		close(c.signals)
	}()

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.logger.Warnf("Relay connection lost: %v", err)
			if !c.reconnect() {
				c.setStatus(StatusDisconnected)
				return
			}
			continue
		}
		c.route(env)
	}
}

func (c *Client) route(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventID:
		c.deliverID(env.ID)
	case protocol.EventPeers:
		select {
		case c.peers <- env.Peers:
		case <-c.done:
		}
	case protocol.EventOffer, protocol.EventAnswer, protocol.EventCandidate:
		select {
		case c.signals <- env:
		case <-c.done:
		}
	default:
		c.logger.Debugf("Ignoring unknown event %q from relay", env.Event)
	}
}

// deliverID replaces a stale identifier rather than blocking: after a
// reconnect the relay assigns a fresh one and only the latest is valid.
func (c *Client) deliverID(id string) {
	for {
		select {
		case c.ids <- id:
			return
		case <-c.done:
			return
		default:
			select {
			case <-c.ids:
			default:
			}
		}
	}
}

// reconnect retries the relay up to MaxReconnectAttempts times with a fixed
// delay. It reports whether a new connection was established.
func (c *Client) reconnect() bool {
	c.setStatus(StatusReconnecting)

	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(c.opts.ReconnectDelay):
		}

		c.logger.Infof("Reconnecting to relay (attempt %d/%d)", attempt, c.opts.MaxReconnectAttempts)
		conn, _, err := websocket.DefaultDialer.Dial(c.opts.URL, nil)
		if err != nil {
			c.logger.Warnf("Reconnect attempt %d failed: %v", attempt, err)
			continue
		}

		c.writeMu.Lock()
		c.conn = conn
		c.writeMu.Unlock()
		c.setStatus(StatusConnected)
		return true
	}

	c.logger.Errorf("Giving up on relay after %d attempts", c.opts.MaxReconnectAttempts)
	return false
}

func (c *Client) setStatus(status Status) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(status)
	}
}
