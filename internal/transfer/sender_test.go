package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
)

// fakeChannel records everything handed to it, optionally failing after a
// given number of sends.
type fakeChannel struct {
	texts     [][]byte
	chunks    [][]byte
	failAfter int
	sends     int
}

func (c *fakeChannel) SendText(data []byte) error {
	if err := c.countSend(); err != nil {
		return err
	}
	c.texts = append(c.texts, append([]byte(nil), data...))
	return nil
}

func (c *fakeChannel) Send(data []byte) error {
	if err := c.countSend(); err != nil {
		return err
	}
	c.chunks = append(c.chunks, append([]byte(nil), data...))
	return nil
}

func (c *fakeChannel) countSend() error {
	c.sends++
	if c.failAfter > 0 && c.sends > c.failAfter {
		return ErrNotConnected
	}
	return nil
}

func (c *fakeChannel) metadata(t *testing.T) *protocol.Metadata {
	t.Helper()
	if len(c.texts) == 0 {
		t.Fatal("no control message sent")
	}
	var meta protocol.Metadata
	if err := json.Unmarshal(c.texts[0], &meta); err != nil {
		t.Fatalf("metadata unmarshal failed: %v", err)
	}
	return &meta
}

func outgoing(name string, data []byte) Outgoing {
	return Outgoing{
		Meta: protocol.FileMeta{Name: name, Type: "application/octet-stream", Size: int64(len(data))},
		Data: bytes.NewReader(data),
	}
}

func TestSenderEmptyQueue(t *testing.T) {
	s := NewSender(SenderOptions{Channel: &fakeChannel{}})
	if err := s.Send(nil); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("expected ErrEmptyQueue, got %v", err)
	}
	if s.State() != SendFailed {
		t.Errorf("expected FAILED state, got %s", s.State())
	}
}

func TestSenderNoChannel(t *testing.T) {
	s := NewSender(SenderOptions{})
	err := s.Send([]Outgoing{outgoing("a.txt", []byte("hi"))})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSenderChunking(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(SenderOptions{Channel: ch})

	data := make([]byte, 20000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := s.Send([]Outgoing{outgoing("a.txt", data)}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if s.State() != SendAllSent {
		t.Errorf("expected ALL_SENT state, got %s", s.State())
	}
	if len(ch.chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(ch.chunks))
	}
	if len(ch.chunks[0]) != 16384 {
		t.Errorf("expected first chunk of 16384 bytes, got %d", len(ch.chunks[0]))
	}
	if len(ch.chunks[1]) != 3616 {
		t.Errorf("expected second chunk of 3616 bytes, got %d", len(ch.chunks[1]))
	}

	meta := ch.metadata(t)
	if meta.TotalSize != 20000 {
		t.Errorf("expected total size 20000, got %d", meta.TotalSize)
	}
}

func TestSenderExactMultipleOfChunkSize(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(SenderOptions{Channel: ch})

	data := make([]byte, 3*protocol.ChunkSize)
	if err := s.Send([]Outgoing{outgoing("a.bin", data)}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(ch.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(ch.chunks))
	}
	for i, chunk := range ch.chunks {
		if len(chunk) != protocol.ChunkSize {
			t.Errorf("chunk %d: expected %d bytes, got %d", i, protocol.ChunkSize, len(chunk))
		}
	}
}

func TestSenderZeroByteFile(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(SenderOptions{Channel: ch})

	if err := s.Send([]Outgoing{outgoing("empty", nil)}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(ch.chunks) != 0 {
		t.Errorf("expected 0 chunks for zero-byte file, got %d", len(ch.chunks))
	}
	if len(ch.texts) != 1 {
		t.Errorf("expected metadata only, got %d control messages", len(ch.texts))
	}
	if s.State() != SendAllSent {
		t.Errorf("expected ALL_SENT state, got %s", s.State())
	}
}

func TestSenderMetadataFirst(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(SenderOptions{Channel: ch})

	queue := []Outgoing{
		outgoing("a.txt", []byte("hello")),
		outgoing("b.txt", []byte("world!")),
	}
	if err := s.Send(queue); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(ch.texts) != 1 {
		t.Fatalf("expected exactly one control message, got %d", len(ch.texts))
	}

	meta := ch.metadata(t)
	if len(meta.Files) != 2 {
		t.Errorf("expected 2 descriptors, got %d", len(meta.Files))
	}
	if meta.TotalSize != 11 {
		t.Errorf("expected total size 11, got %d", meta.TotalSize)
	}

	var sum int64
	for _, f := range meta.Files {
		sum += f.Size
	}
	if sum != meta.TotalSize {
		t.Errorf("descriptor sizes sum to %d, metadata advertises %d", sum, meta.TotalSize)
	}
}

func TestSenderHaltsOnSendFailure(t *testing.T) {
	// Metadata plus first chunk succeed, second chunk fails.
	ch := &fakeChannel{failAfter: 2}
	s := NewSender(SenderOptions{Channel: ch})

	data := make([]byte, 20000)
	err := s.Send([]Outgoing{outgoing("a.txt", data)})
	if err == nil {
		t.Fatal("expected error when channel send fails")
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected cause, got %v", err)
	}
	if s.State() != SendFailed {
		t.Errorf("expected FAILED state, got %s", s.State())
	}
	if len(ch.chunks) != 1 {
		t.Errorf("expected the engine to halt after the failed chunk, got %d chunks", len(ch.chunks))
	}
}

func TestSenderProgress(t *testing.T) {
	ch := &fakeChannel{}
	var got [][2]int64
	s := NewSender(SenderOptions{
		Channel:    ch,
		OnProgress: func(sent, total int64) { got = append(got, [2]int64{sent, total}) },
	})

	data := make([]byte, 20000)
	if err := s.Send([]Outgoing{outgoing("a.txt", data)}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 progress events, got %d", len(got))
	}
	if got[0] != [2]int64{16384, 20000} {
		t.Errorf("unexpected first progress event: %v", got[0])
	}
	if got[1] != [2]int64{20000, 20000} {
		t.Errorf("unexpected final progress event: %v", got[1])
	}
}
