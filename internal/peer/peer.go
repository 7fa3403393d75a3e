// Package peer ties the pieces together: one signaling connection to the
// relay, at most one live exchange (negotiation + transfer session) at a
// time, and a local history of completed transfers.
package peer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/drop-it/internal/history"
	"github.com/rudransh-shrivastava/drop-it/internal/negotiator"
	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
	"github.com/rudransh-shrivastava/drop-it/internal/signaling"
	"github.com/rudransh-shrivastava/drop-it/internal/transfer"
)

type Options struct {
	// RelayURL is the relay websocket endpoint, e.g. ws://localhost:8080/ws.
	RelayURL string
	// DownloadDir receives completed inbound files. Defaults to the current
	// directory.
	DownloadDir string
	// HistoryPath, when set, opens a sqlite transfer history at that path.
	HistoryPath string
	Logger      *logrus.Logger
	// ShowProgress renders a terminal progress bar during transfers.
	ShowProgress bool
	// ConnectTimeout bounds negotiation. Zero means the protocol default.
	ConnectTimeout time.Duration
}

// exchange is one negotiation plus its transfer session. Answer and
// candidate envelopes arrive without a source, so only one exchange can be
// in flight at a time; the signaling replies belong to it by construction.
type exchange struct {
	remoteID  string
	initiator bool
	neg       *negotiator.Negotiator
	recv      *transfer.Receiver

	connected chan struct{}
	failed    chan error
	acks      chan int64
	finished  chan struct{}
}

type Peer struct {
	opts    Options
	logger  *logrus.Logger
	relay   *signaling.Client
	history *history.Store

	mu      sync.Mutex
	id      string
	peers   []string
	current *exchange

	idReady chan struct{}
	idOnce  sync.Once

	done      chan struct{}
	closeOnce sync.Once
}

func New(opts Options) (*Peer, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = protocol.DefaultConnectTimeout
	}

	p := &Peer{
		opts:    opts,
		logger:  opts.Logger,
		idReady: make(chan struct{}),
		done:    make(chan struct{}),
	}

	if opts.HistoryPath != "" {
		store, err := history.Open(opts.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("opening transfer history: %w", err)
		}
		p.history = store
	}

	relay, err := signaling.Dial(signaling.Options{
		URL:    opts.RelayURL,
		Logger: opts.Logger,
		OnStatus: func(s signaling.Status) {
			opts.Logger.Debugf("Relay status: %s", s)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dialing relay: %w", err)
	}
	p.relay = relay

	go p.run()
	return p, nil
}

// run consumes the signaling channels until the relay connection or the peer
// shuts down.
func (p *Peer) run() {
	for {
		select {
		case <-p.done:
			return

		case id, ok := <-p.relay.IDs():
			if !ok {
				return
			}
			p.mu.Lock()
			p.id = id
			p.mu.Unlock()
			p.idOnce.Do(func() { close(p.idReady) })
			p.logger.Infof("Registered with relay as %s", id)

		case peers, ok := <-p.relay.Peers():
			if !ok {
				return
			}
			p.mu.Lock()
			p.peers = peers
			p.mu.Unlock()

		case env, ok := <-p.relay.Signals():
			if !ok {
				return
			}
			p.routeSignal(env)
		}
	}
}

func (p *Peer) routeSignal(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventOffer:
		p.handleOffer(env)

	case protocol.EventAnswer:
		ex := p.currentExchange()
		if ex == nil || !ex.initiator {
			p.logger.Warnf("Dropping answer with no outbound negotiation in flight")
			return
		}
		if err := ex.neg.HandleAnswer(env.Payload); err != nil {
			p.logger.Warnf("Failed to apply answer: %v", err)
		}

	case protocol.EventCandidate:
		ex := p.currentExchange()
		if ex == nil {
			p.logger.Debugf("Dropping candidate with no negotiation in flight")
			return
		}
		if err := ex.neg.HandleCandidate(env.Payload); err != nil {
			p.logger.Warnf("Failed to apply ICE candidate: %v", err)
		}
	}
}

// AwaitID blocks until the relay has assigned this peer an identifier.
func (p *Peer) AwaitID(ctx context.Context) (string, error) {
	select {
	case <-p.idReady:
	case <-p.done:
		return "", fmt.Errorf("peer closed before the relay assigned an id")
	case <-ctx.Done():
		return "", ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id, nil
}

// Discover asks the relay for the current peer set. The reply lands in
// PeerList once the next peers push arrives.
func (p *Peer) Discover() error {
	return p.relay.Discover()
}

// PeerList returns the last peer set pushed by the relay, excluding this peer.
func (p *Peer) PeerList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.peers))
	copy(out, p.peers)
	return out
}

// History lists completed transfers, most recent first.
func (p *Peer) History() ([]history.Transfer, error) {
	if p.history == nil {
		return nil, fmt.Errorf("transfer history is not enabled")
	}
	return p.history.List()
}

func (p *Peer) currentExchange() *exchange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// beginExchange installs ex as the single in-flight exchange.
func (p *Peer) beginExchange(ex *exchange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return fmt.Errorf("a transfer with %s is already in progress", p.current.remoteID)
	}
	p.current = ex
	return nil
}

// endExchange tears ex down and frees the slot, if ex is still current.
func (p *Peer) endExchange(ex *exchange) {
	p.mu.Lock()
	if p.current == ex {
		p.current = nil
	}
	p.mu.Unlock()

	if ex.recv != nil {
		ex.recv.Close()
	}
	ex.neg.Close()
}

func (p *Peer) recordHistory(peerID, direction string, meta protocol.FileMeta) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(peerID, direction, meta.Name, meta.Type, meta.Size); err != nil {
		p.logger.Warnf("Failed to record transfer history: %v", err)
	}
}

// Close is idempotent.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		ex := p.current
		p.current = nil
		p.mu.Unlock()
		if ex != nil {
			if ex.recv != nil {
				ex.recv.Close()
			}
			ex.neg.Close()
		}
		p.relay.Close()
	})
	return nil
}
