package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Control message types carried as JSON text on the data channel. Chunks are
// raw binary messages with no envelope.
const (
	ControlMetadata = "metadata"
	ControlDone     = "done"
)

// FileMeta describes one queued file. LastModified is unix milliseconds.
type FileMeta struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"`
}

// Metadata is the single control message describing the full file queue.
// It is sent exactly once, before the first chunk.
type Metadata struct {
	Type      string     `json:"type"`
	Files     []FileMeta `json:"files"`
	TotalSize int64      `json:"totalSize"`
	Timestamp int64      `json:"timestamp"`
}

// DoneAck is sent by the receiver after the last file completes. Completion
// is inferred from byte counts either way; the ack only confirms it.
type DoneAck struct {
	Type         string `json:"type"`
	ReceivedSize int64  `json:"receivedSize"`
}

func BuildMetadata(files []FileMeta) *Metadata {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return &Metadata{
		Type:      ControlMetadata,
		Files:     files,
		TotalSize: total,
		Timestamp: time.Now().UnixMilli(),
	}
}

func BuildDoneAck(receivedSize int64) *DoneAck {
	return &DoneAck{Type: ControlDone, ReceivedSize: receivedSize}
}

// DecodeControl parses a JSON control message received on the data channel.
// It returns *Metadata or *DoneAck.
func DecodeControl(data []byte) (interface{}, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding control message: %w", err)
	}

	switch head.Type {
	case ControlMetadata:
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		return &meta, nil
	case ControlDone:
		var ack DoneAck
		if err := json.Unmarshal(data, &ack); err != nil {
			return nil, fmt.Errorf("decoding done ack: %w", err)
		}
		return &ack, nil
	default:
		return nil, fmt.Errorf("unknown control message type %q", head.Type)
	}
}
