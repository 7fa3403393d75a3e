package transfer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
	"github.com/sirupsen/logrus"
)

type ReceiveState int

const (
	ReceiveAwaitingMetadata ReceiveState = iota
	ReceiveReceivingFile
	ReceiveAllReceived
	ReceiveFailed
	ReceiveClosed
)

func (s ReceiveState) String() string {
	switch s {
	case ReceiveAwaitingMetadata:
		return "AWAITING_METADATA"
	case ReceiveReceivingFile:
		return "RECEIVING_FILE"
	case ReceiveAllReceived:
		return "ALL_RECEIVED"
	case ReceiveFailed:
		return "FAILED"
	case ReceiveClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ReceivedFile is one fully reassembled file. Files are keyed by queue
// index; duplicate names across the queue are permitted.
type ReceivedFile struct {
	Index int
	Meta  protocol.FileMeta
	Data  []byte
}

type ReceiverOptions struct {
	// Channel, when set, is used to send the done acknowledgment after the
	// last file completes. It is never required for reassembly.
	Channel Channel
	Logger  *logrus.Logger
	// SpeedWindow is the trailing window used to derive transfer speed.
	SpeedWindow time.Duration

	OnFileComplete     func(ReceivedFile)
	OnTransferComplete func()
	// OnProgress fires after every chunk with cumulative received bytes,
	// the advertised total and the current speed in bytes per second.
	OnProgress func(received, total int64, speed float64)
}

// Receiver mirrors the sender's state machine: AwaitingMetadata ->
// ReceivingFile(i) -> AllReceived. The whole file is buffered in memory and
// concatenated once its advertised byte count has arrived; there is no
// explicit end-of-file marker on the wire.
type Receiver struct {
	mu sync.Mutex

	ch     Channel
	logger *logrus.Logger
	speed  *speedWindow
	opts   ReceiverOptions

	state        ReceiveState
	files        []protocol.FileMeta
	totalSize    int64
	received     int64
	fileIndex    int
	fileReceived int64
	buffers      [][]byte
}

func NewReceiver(opts ReceiverOptions) *Receiver {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Receiver{
		ch:     opts.Channel,
		logger: log,
		speed:  newSpeedWindow(opts.SpeedWindow, nil),
		opts:   opts,
		state:  ReceiveAwaitingMetadata,
	}
}

func (r *Receiver) State() ReceiveState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandleMessage dispatches one inbound data-channel message. Control
// messages arrive as text, chunks as binary.
func (r *Receiver) HandleMessage(isText bool, data []byte) error {
	if isText {
		return r.HandleControl(data)
	}
	return r.HandleChunk(data)
}

// HandleControl processes the metadata control message. It must be the first
// message of the session.
func (r *Receiver) HandleControl(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case ReceiveAwaitingMetadata:
	case ReceiveFailed, ReceiveClosed:
		return ErrSessionClosed
	default:
		return r.fail(fmt.Errorf("%w: unexpected control message in state %s", ErrProtocolViolation, r.state))
	}

	decoded, err := protocol.DecodeControl(data)
	if err != nil {
		return r.fail(fmt.Errorf("%w: %v", ErrProtocolViolation, err))
	}
	meta, ok := decoded.(*protocol.Metadata)
	if !ok {
		return r.fail(fmt.Errorf("%w: first message must be metadata, got %T", ErrProtocolViolation, decoded))
	}
	if len(meta.Files) == 0 {
		return r.fail(fmt.Errorf("%w: metadata lists no files", ErrProtocolViolation))
	}
	var sum int64
	for _, f := range meta.Files {
		sum += f.Size
	}
	if sum != meta.TotalSize {
		return r.fail(fmt.Errorf("%w: file sizes sum to %d but metadata advertises %d", ErrProtocolViolation, sum, meta.TotalSize))
	}

	r.files = meta.Files
	r.totalSize = meta.TotalSize
	r.state = ReceiveReceivingFile
	r.logger.Debugf("Received metadata for %d files, %d bytes total", len(meta.Files), meta.TotalSize)

	// Zero-size files expect no chunks at all and complete on metadata
	// receipt alone.
	r.completeEmptyFiles()
	r.maybeFinish()
	return nil
}

// HandleChunk appends one binary chunk to the active file's buffer.
func (r *Receiver) HandleChunk(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case ReceiveAwaitingMetadata:
		return r.fail(fmt.Errorf("%w: chunk received before metadata", ErrProtocolViolation))
	case ReceiveReceivingFile:
	case ReceiveFailed, ReceiveClosed:
		return ErrSessionClosed
	default:
		return r.fail(fmt.Errorf("%w: chunk received in state %s", ErrProtocolViolation, r.state))
	}

	active := r.files[r.fileIndex]
	if r.fileReceived+int64(len(chunk)) > active.Size {
		return r.fail(fmt.Errorf("%w: file %d received %d bytes but descriptor advertises %d",
			ErrProtocolViolation, r.fileIndex, r.fileReceived+int64(len(chunk)), active.Size))
	}

	// The channel may reuse the message buffer once the callback returns.
	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	r.buffers = append(r.buffers, owned)
	r.fileReceived += int64(len(owned))
	r.received += int64(len(owned))
	r.speed.add(int64(len(owned)))

	if r.opts.OnProgress != nil {
		r.opts.OnProgress(r.received, r.totalSize, r.speed.rate())
	}

	if r.fileReceived == active.Size {
		r.assembleActiveFile()
		r.completeEmptyFiles()
	}
	r.maybeFinish()
	return nil
}

// assembleActiveFile concatenates the ordered chunk buffers into the final
// artifact, emits the file-complete event and advances the active index.
func (r *Receiver) assembleActiveFile() {
	meta := r.files[r.fileIndex]
	data := make([]byte, 0, meta.Size)
	for _, b := range r.buffers {
		data = append(data, b...)
	}
	r.buffers = nil
	r.fileReceived = 0

	file := ReceivedFile{Index: r.fileIndex, Meta: meta, Data: data}
	r.fileIndex++
	r.logger.Debugf("File %d complete: %s (%d bytes)", file.Index, meta.Name, len(data))
	if r.opts.OnFileComplete != nil {
		r.opts.OnFileComplete(file)
	}
}

func (r *Receiver) completeEmptyFiles() {
	for r.fileIndex < len(r.files) && r.files[r.fileIndex].Size == 0 {
		r.assembleActiveFile()
	}
}

func (r *Receiver) maybeFinish() {
	if r.state != ReceiveReceivingFile || r.fileIndex < len(r.files) {
		return
	}
	r.state = ReceiveAllReceived
	r.logger.Infof("Received %d files, %d bytes", len(r.files), r.received)
	if r.opts.OnTransferComplete != nil {
		r.opts.OnTransferComplete()
	}
	r.sendDoneAck()
}

func (r *Receiver) sendDoneAck() {
	if r.ch == nil {
		return
	}
	data, err := json.Marshal(protocol.BuildDoneAck(r.received))
	if err != nil {
		r.logger.Warnf("Failed to marshal done ack: %v", err)
		return
	}
	if err := r.ch.SendText(data); err != nil {
		r.logger.Warnf("Failed to send done ack: %v", err)
	}
}

func (r *Receiver) fail(err error) error {
	r.state = ReceiveFailed
	r.buffers = nil
	r.logger.Warnf("Transfer dropped: %v", err)
	return err
}

// Close tears the session down, synchronously discarding all in-flight chunk
// buffers for incomplete files. A session closed before AllReceived is
// terminal and never emits transfer-complete. Close is idempotent.
func (r *Receiver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case ReceiveClosed, ReceiveFailed, ReceiveAllReceived:
		r.buffers = nil
		return
	}

	r.state = ReceiveClosed
	r.buffers = nil
	r.logger.Debug("Receive session closed before completion, buffers discarded")
}
