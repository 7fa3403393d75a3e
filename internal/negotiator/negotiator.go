// Package negotiator establishes a WebRTC peer connection with a single
// ordered data channel, driven by envelopes relayed through the signaling
// server. One Negotiator handles one remote endpoint; whoever starts the
// send is the initiator and creates the channel.
package negotiator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
	"github.com/rudransh-shrivastava/drop-it/internal/transfer"
)

var (
	// ErrNegotiationTimeout is reported when the data channel has not opened
	// within ConnectTimeout of negotiation start.
	ErrNegotiationTimeout = errors.New("negotiation timed out")

	// ErrConnectionFailed is reported when ICE gives up before the channel opens.
	ErrConnectionFailed = errors.New("peer connection failed")
)

// SignalSender carries outbound SDP and ICE payloads to the remote endpoint.
// The signaling client satisfies it.
type SignalSender interface {
	SendOffer(targetID string, payload json.RawMessage) error
	SendAnswer(targetID string, payload json.RawMessage) error
	SendCandidate(targetID string, payload json.RawMessage) error
}

type Options struct {
	// PeerID is the remote endpoint this negotiator talks to.
	PeerID   string
	Signaler SignalSender
	// Config overrides the ICE server configuration. Zero value means
	// DefaultSTUNConfig.
	Config webrtc.Configuration
	// ConnectTimeout bounds the time between negotiation start and the data
	// channel opening. Zero means protocol.DefaultConnectTimeout.
	ConnectTimeout time.Duration
	Logger         *logrus.Logger

	// OnConnected fires exactly once, when the data channel opens.
	OnConnected func()
	// OnMessage delivers inbound channel messages in arrival order.
	OnMessage func(isText bool, data []byte)
	// OnClosed fires when an open channel closes.
	OnClosed func()
	// OnFailed fires when negotiation is abandoned before the channel opens.
	OnFailed func(err error)
}

// Negotiator wraps one PeerConnection and its data channel. It satisfies
// transfer.Channel once connected.
type Negotiator struct {
	peerID   string
	signaler SignalSender
	logger   *logrus.Logger
	timeout  time.Duration

	onConnected func()
	onMessage   func(isText bool, data []byte)
	onClosed    func()
	onFailed    func(err error)

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	open   bool
	closed bool
	timer  *time.Timer

	connectOnce sync.Once
	closeOnce   sync.Once
}

var _ transfer.Channel = (*Negotiator)(nil)

func New(opts Options) (*Negotiator, error) {
	if opts.PeerID == "" {
		return nil, fmt.Errorf("negotiator needs a peer id")
	}
	if opts.Signaler == nil {
		return nil, fmt.Errorf("negotiator needs a signal sender")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = protocol.DefaultConnectTimeout
	}
	config := opts.Config
	if len(config.ICEServers) == 0 {
		config = DefaultSTUNConfig()
	}

	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %v", err)
	}

	n := &Negotiator{
		peerID:      opts.PeerID,
		signaler:    opts.Signaler,
		logger:      opts.Logger,
		timeout:     opts.ConnectTimeout,
		onConnected: opts.OnConnected,
		onMessage:   opts.OnMessage,
		onClosed:    opts.OnClosed,
		onFailed:    opts.OnFailed,
		pc:          pc,
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		n.logger.Debugf("Peer connection state with %s changed: %s", n.peerID, s.String())
		if s == webrtc.PeerConnectionStateFailed {
			n.fail(ErrConnectionFailed)
		}
	})

	pc.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			return
		}
		payload, err := json.Marshal(ice.ToJSON())
		if err != nil {
			n.logger.Warnf("Failed to encode ICE candidate: %v", err)
			return
		}
		if err := n.signaler.SendCandidate(n.peerID, payload); err != nil {
			n.logger.Warnf("Failed to send ICE candidate: %v", err)
		}
	})

	// The responder waits for the initiator's channel.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		n.setupDataChannel(dc)
	})

	return n, nil
}

// PeerID returns the remote endpoint id.
func (n *Negotiator) PeerID() string {
	return n.peerID
}

// StartOffer makes this side the initiator: it creates the data channel,
// produces an offer and sends it through the signaler. The connect timeout
// starts here.
func (n *Negotiator) StartOffer() error {
	n.logger.Debugf("Creating data channel as we are the initiator")
	dc, err := n.pc.CreateDataChannel("data", DefaultDataChannelConfig())
	if err != nil {
		return fmt.Errorf("failed to create data channel: %v", err)
	}
	n.setupDataChannel(dc)

	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %v", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %v", err)
	}

	payload, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to encode offer: %v", err)
	}
	if err := n.signaler.SendOffer(n.peerID, payload); err != nil {
		return fmt.Errorf("failed to send offer: %v", err)
	}

	n.armTimer()
	return nil
}

// HandleOffer makes this side the responder: it applies the remote offer and
// sends back an answer. The connect timeout starts here.
func (n *Negotiator) HandleOffer(payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("failed to decode offer: %v", err)
	}
	if err := n.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("failed to set remote description: %v", err)
	}

	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %v", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %v", err)
	}

	answerPayload, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to encode answer: %v", err)
	}
	if err := n.signaler.SendAnswer(n.peerID, answerPayload); err != nil {
		return fmt.Errorf("failed to send answer: %v", err)
	}

	n.armTimer()
	return nil
}

func (n *Negotiator) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("failed to decode answer: %v", err)
	}
	if err := n.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %v", err)
	}
	return nil
}

func (n *Negotiator) HandleCandidate(payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("failed to decode ICE candidate: %v", err)
	}
	if err := n.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %v", err)
	}
	return nil
}

// Send transmits one binary chunk over the data channel.
func (n *Negotiator) Send(data []byte) error {
	dc, err := n.channel()
	if err != nil {
		return err
	}
	return dc.Send(data)
}

// SendText transmits one text control message over the data channel.
func (n *Negotiator) SendText(data []byte) error {
	dc, err := n.channel()
	if err != nil {
		return err
	}
	return dc.SendText(string(data))
}

func (n *Negotiator) channel() (*webrtc.DataChannel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || !n.open || n.dc == nil {
		return nil, transfer.ErrNotConnected
	}
	return n.dc, nil
}

// Connected reports whether the data channel is currently open.
func (n *Negotiator) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.open && !n.closed
}

// Close tears the peer connection down. Safe to call more than once.
func (n *Negotiator) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.open = false
		if n.timer != nil {
			n.timer.Stop()
		}
		dc := n.dc
		n.mu.Unlock()

		if dc != nil {
			if closeErr := dc.Close(); closeErr != nil {
				n.logger.Debugf("Data channel close: %v", closeErr)
			}
		}
		err = n.pc.Close()
	})
	return err
}

func (n *Negotiator) setupDataChannel(dc *webrtc.DataChannel) {
	n.mu.Lock()
	n.dc = dc
	n.mu.Unlock()

	dc.OnOpen(func() {
		n.logger.Debugf("Data channel '%s'-'%d' open", dc.Label(), dc.ID())
		n.mu.Lock()
		if n.closed {
			n.mu.Unlock()
			return
		}
		n.open = true
		if n.timer != nil {
			n.timer.Stop()
		}
		n.mu.Unlock()

		n.connectOnce.Do(func() {
			if n.onConnected != nil {
				n.onConnected()
			}
		})
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if n.onMessage != nil {
			n.onMessage(msg.IsString, msg.Data)
		}
	})

	dc.OnError(func(err error) {
		n.logger.Warnf("Data channel error: %v", err)
	})

	dc.OnClose(func() {
		n.logger.Debugf("Data channel '%s'-'%d' closed", dc.Label(), dc.ID())
		n.mu.Lock()
		wasOpen := n.open
		n.open = false
		n.mu.Unlock()
		if wasOpen && n.onClosed != nil {
			n.onClosed()
		}
	})
}

func (n *Negotiator) armTimer() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.timer != nil {
		return
	}
	n.timer = time.AfterFunc(n.timeout, func() {
		n.fail(ErrNegotiationTimeout)
	})
}

// fail abandons a negotiation that never produced an open channel. It is a
// no-op once the channel has opened or the negotiator is closed.
func (n *Negotiator) fail(cause error) {
	n.mu.Lock()
	if n.open || n.closed {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	n.logger.Warnf("Negotiation with %s failed: %v", n.peerID, cause)
	n.Close()
	if n.onFailed != nil {
		n.onFailed(cause)
	}
}
