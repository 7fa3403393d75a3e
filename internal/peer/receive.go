package peer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rudransh-shrivastava/drop-it/internal/history"
	"github.com/rudransh-shrivastava/drop-it/internal/negotiator"
	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
	"github.com/rudransh-shrivastava/drop-it/internal/transfer"
)

// handleOffer answers an inbound offer and consumes the transfer that
// follows. Sourceless signaling replies can only be matched to one exchange,
// so a second offer while one is in flight is refused.
func (p *Peer) handleOffer(env protocol.Envelope) {
	if env.Source == "" {
		p.logger.Warnf("Dropping offer without a sender identity")
		return
	}

	ex := &exchange{
		remoteID:  env.Source,
		connected: make(chan struct{}),
		failed:    make(chan error, 1),
		finished:  make(chan struct{}),
	}

	neg, err := negotiator.New(negotiator.Options{
		PeerID:         env.Source,
		Signaler:       p.relay,
		ConnectTimeout: p.opts.ConnectTimeout,
		Logger:         p.logger,
		OnConnected: func() {
			close(ex.connected)
			p.logger.Infof("Receiving from %s", ex.remoteID)
		},
		OnMessage: func(isText bool, data []byte) { p.handleReceiverMessage(ex, isText, data) },
		OnClosed:  func() { p.endExchange(ex) },
		OnFailed: func(err error) {
			p.logger.Warnf("Negotiation with %s failed: %v", ex.remoteID, err)
			p.endExchange(ex)
		},
	})
	if err != nil {
		p.logger.Warnf("Failed to create negotiator for %s: %v", env.Source, err)
		return
	}
	ex.neg = neg

	var progress *progressReporter
	ex.recv = transfer.NewReceiver(transfer.ReceiverOptions{
		Channel: neg,
		Logger:  p.logger,
		OnFileComplete: func(f transfer.ReceivedFile) {
			p.saveReceivedFile(ex.remoteID, f)
		},
		OnTransferComplete: func() {
			if progress != nil {
				progress.finish()
			}
			close(ex.finished)
			p.logger.Infof("Transfer from %s complete", ex.remoteID)
		},
		OnProgress: func(received, total int64, speed float64) {
			if progress == nil {
				progress = p.newProgress(total, fmt.Sprintf("Receiving from %s", ex.remoteID))
			}
			progress.update(received)
		},
	})

	if err := p.beginExchange(ex); err != nil {
		p.logger.Warnf("Refusing offer from %s: %v", env.Source, err)
		neg.Close()
		return
	}

	if err := neg.HandleOffer(env.Payload); err != nil {
		p.logger.Warnf("Failed to answer offer from %s: %v", env.Source, err)
		p.endExchange(ex)
	}
}

// handleReceiverMessage feeds channel messages into the transfer session.
// A protocol violation drops the whole session.
func (p *Peer) handleReceiverMessage(ex *exchange, isText bool, data []byte) {
	if err := ex.recv.HandleMessage(isText, data); err != nil {
		p.logger.Warnf("Dropping transfer from %s: %v", ex.remoteID, err)
		p.endExchange(ex)
	}
}

// saveReceivedFile writes one reassembled file into the download directory,
// suffixing the name when it collides with an existing file.
func (p *Peer) saveReceivedFile(peerID string, f transfer.ReceivedFile) {
	if err := os.MkdirAll(p.opts.DownloadDir, 0o755); err != nil {
		p.logger.Errorf("Failed to create download directory: %v", err)
		return
	}

	// Remote names are untrusted; keep only the base component.
	name := filepath.Base(f.Meta.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = fmt.Sprintf("file-%d", f.Index)
	}

	path := uniquePath(p.opts.DownloadDir, name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		p.logger.Errorf("Failed to write %s: %v", path, err)
		return
	}

	p.logger.Infof("Saved %s (%d bytes)", path, len(f.Data))
	p.recordHistory(peerID, history.DirectionReceived, f.Meta)
}

// uniquePath returns a path in dir for name, appending " (n)" before the
// extension until it does not collide.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
