package transfer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
	"github.com/sirupsen/logrus"
)

type SendState int

const (
	SendIdle SendState = iota
	SendMetadataSent
	SendSendingFile
	SendAllSent
	SendFailed
)

func (s SendState) String() string {
	switch s {
	case SendIdle:
		return "IDLE"
	case SendMetadataSent:
		return "METADATA_SENT"
	case SendSendingFile:
		return "SENDING_FILE"
	case SendAllSent:
		return "ALL_SENT"
	case SendFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Outgoing is one queued file: its descriptor plus a reader producing exactly
// Meta.Size bytes.
type Outgoing struct {
	Meta protocol.FileMeta
	Data io.Reader
}

type SenderOptions struct {
	Channel   Channel
	Logger    *logrus.Logger
	ChunkSize int
	// OnProgress is called after every chunk with cumulative bytes sent
	// and the session total.
	OnProgress func(sent, total int64)
}

// Sender walks a file queue through Idle -> MetadataSent -> SendingFile(i)
// -> AllSent. Any send failure is terminal: the session is not retried or
// resumed, it must be restarted from scratch.
type Sender struct {
	ch         Channel
	logger     *logrus.Logger
	chunkSize  int
	onProgress func(sent, total int64)

	state     SendState
	fileIndex int
	offset    int64
}

func NewSender(opts SenderOptions) *Sender {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = protocol.ChunkSize
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Sender{
		ch:         opts.Channel,
		logger:     log,
		chunkSize:  chunkSize,
		onProgress: opts.OnProgress,
		state:      SendIdle,
	}
}

func (s *Sender) State() SendState { return s.state }

// Send transfers every queued file, in order. It blocks until the last chunk
// has been handed to the channel or a failure occurs.
func (s *Sender) Send(queue []Outgoing) error {
	if s.ch == nil {
		return s.fail(ErrNotConnected)
	}
	if len(queue) == 0 {
		return s.fail(ErrEmptyQueue)
	}

	metas := make([]protocol.FileMeta, 0, len(queue))
	for _, f := range queue {
		metas = append(metas, f.Meta)
	}
	meta := protocol.BuildMetadata(metas)

	data, err := json.Marshal(meta)
	if err != nil {
		return s.fail(fmt.Errorf("marshalling metadata: %w", err))
	}
	if err := s.ch.SendText(data); err != nil {
		return s.fail(fmt.Errorf("sending metadata: %w", err))
	}
	s.state = SendMetadataSent
	s.logger.Debugf("Sent metadata for %d files, %d bytes total", len(queue), meta.TotalSize)

	var sent int64
	buf := make([]byte, s.chunkSize)
	for i, f := range queue {
		s.state = SendSendingFile
		s.fileIndex = i
		s.offset = 0

		for s.offset < f.Meta.Size {
			want := f.Meta.Size - s.offset
			if want > int64(s.chunkSize) {
				want = int64(s.chunkSize)
			}
			n, err := io.ReadFull(f.Data, buf[:want])
			if err != nil {
				return s.fail(fmt.Errorf("reading %s at offset %d: %w", f.Meta.Name, s.offset, err))
			}

			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := s.ch.Send(chunk); err != nil {
				return s.fail(fmt.Errorf("sending chunk of %s at offset %d: %w", f.Meta.Name, s.offset, err))
			}

			s.offset += int64(n)
			sent += int64(n)
			if s.onProgress != nil {
				s.onProgress(sent, meta.TotalSize)
			}
		}
		s.logger.Debugf("Finished sending file %d: %s (%d bytes)", i, f.Meta.Name, f.Meta.Size)
	}

	s.state = SendAllSent
	s.logger.Infof("Sent %d files, %d bytes", len(queue), sent)
	return nil
}

func (s *Sender) fail(err error) error {
	s.state = SendFailed
	s.logger.Warnf("Transfer failed: %v", err)
	return err
}
