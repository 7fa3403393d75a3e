package peer

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/rudransh-shrivastava/drop-it/internal/history"
	"github.com/rudransh-shrivastava/drop-it/internal/negotiator"
	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
	"github.com/rudransh-shrivastava/drop-it/internal/transfer"
)

// ackWait bounds how long the sender waits for the receiver's done
// acknowledgment. The ack is advisory: completion is inferred from byte
// counts and a missing ack only produces a warning.
const ackWait = 5 * time.Second

// SendFiles negotiates a data channel to targetID and streams the named
// files over it. It blocks until the transfer finishes or fails.
func (p *Peer) SendFiles(ctx context.Context, targetID string, paths []string) error {
	queue, cleanup, err := buildQueue(paths)
	if err != nil {
		return err
	}
	defer cleanup()

	ex := &exchange{
		remoteID:  targetID,
		initiator: true,
		connected: make(chan struct{}),
		failed:    make(chan error, 1),
		acks:      make(chan int64, 1),
	}

	neg, err := negotiator.New(negotiator.Options{
		PeerID:         targetID,
		Signaler:       p.relay,
		ConnectTimeout: p.opts.ConnectTimeout,
		Logger:         p.logger,
		OnConnected:    func() { close(ex.connected) },
		OnMessage:      func(isText bool, data []byte) { p.handleSenderMessage(ex, isText, data) },
		OnFailed: func(err error) {
			select {
			case ex.failed <- err:
			default:
			}
		},
	})
	if err != nil {
		return fmt.Errorf("creating negotiator: %w", err)
	}
	ex.neg = neg

	if err := p.beginExchange(ex); err != nil {
		neg.Close()
		return err
	}
	defer p.endExchange(ex)

	if err := neg.StartOffer(); err != nil {
		return fmt.Errorf("starting negotiation: %w", err)
	}

	p.logger.Infof("Negotiating with %s", targetID)
	select {
	case <-ex.connected:
	case err := <-ex.failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("peer closed during negotiation")
	}

	var total int64
	for _, f := range queue {
		total += f.Meta.Size
	}
	progress := p.newProgress(total, fmt.Sprintf("Sending %d file(s)", len(queue)))

	sender := transfer.NewSender(transfer.SenderOptions{
		Channel: neg,
		Logger:  p.logger,
		OnProgress: func(sent, total int64) {
			progress.update(sent)
		},
	})
	if err := sender.Send(queue); err != nil {
		progress.finish()
		return err
	}
	progress.finish()

	select {
	case received := <-ex.acks:
		if received != total {
			p.logger.Warnf("Receiver acknowledged %d bytes, sent %d", received, total)
		}
	case err := <-ex.failed:
		return err
	case <-time.After(ackWait):
		p.logger.Warnf("No acknowledgment from %s, transfer assumed delivered", targetID)
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, f := range queue {
		p.recordHistory(targetID, history.DirectionSent, f.Meta)
	}
	p.logger.Infof("Sent %d file(s) to %s", len(queue), targetID)
	return nil
}

// handleSenderMessage watches the initiator side of the channel for the
// receiver's done acknowledgment.
func (p *Peer) handleSenderMessage(ex *exchange, isText bool, data []byte) {
	if !isText {
		return
	}
	decoded, err := protocol.DecodeControl(data)
	if err != nil {
		p.logger.Debugf("Ignoring unreadable control message: %v", err)
		return
	}
	if ack, ok := decoded.(*protocol.DoneAck); ok {
		select {
		case ex.acks <- ack.ReceivedSize:
		default:
		}
	}
}

// buildQueue opens every path and produces the outgoing file descriptors.
// cleanup closes the opened files and must be called even on error paths.
func buildQueue(paths []string) ([]transfer.Outgoing, func(), error) {
	if len(paths) == 0 {
		return nil, func() {}, transfer.ErrEmptyQueue
	}

	handles := make([]*os.File, 0, len(paths))
	cleanup := func() {
		for _, f := range handles {
			f.Close()
		}
	}

	queue := make([]transfer.Outgoing, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("opening %s: %w", path, err)
		}
		handles = append(handles, f)

		info, err := f.Stat()
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("inspecting %s: %w", path, err)
		}
		if info.IsDir() {
			cleanup()
			return nil, func() {}, fmt.Errorf("%s is a directory", path)
		}

		queue = append(queue, transfer.Outgoing{
			Meta: protocol.FileMeta{
				Name:         filepath.Base(path),
				Type:         mimeType(path),
				Size:         info.Size(),
				LastModified: info.ModTime().UnixMilli(),
			},
			Data: f,
		})
	}
	return queue, cleanup, nil
}

func mimeType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
