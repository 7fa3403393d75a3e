// Package transfer implements the chunked file-transfer protocol run by each
// peer over an established data channel: a sender that serializes a queue of
// files into one metadata control message followed by ordered binary chunks,
// and a receiver that reassembles them.
package transfer

import "errors"

// Channel is the established point-to-point pipe the engine runs over.
//
// In-order delivery is a precondition of this contract: chunks carry no
// sequence numbers, so the engine relies entirely on the channel delivering
// messages in send order (an ordered WebRTC data channel guarantees this).
type Channel interface {
	// SendText sends a JSON control message.
	SendText(data []byte) error
	// Send sends one raw binary chunk.
	Send(data []byte) error
}

var (
	// ErrNotConnected is returned when a transfer is started without a
	// usable channel.
	ErrNotConnected = errors.New("transfer: channel not connected")

	// ErrEmptyQueue is returned when a transfer is started with no files.
	ErrEmptyQueue = errors.New("transfer: no files queued")

	// ErrProtocolViolation is returned when the inbound message stream
	// breaks the protocol: a chunk before metadata, metadata twice, or
	// more bytes than the metadata advertised. The session is dropped.
	ErrProtocolViolation = errors.New("transfer: protocol violation")

	// ErrSessionClosed is returned when a message arrives on a session
	// that has already reached a terminal state.
	ErrSessionClosed = errors.New("transfer: session closed")
)
