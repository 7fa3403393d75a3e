package peer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestBuildQueueReadsFileMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte("twelve bytes"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	queue, cleanup, err := buildQueue([]string{path})
	if err != nil {
		t.Fatalf("buildQueue failed: %v", err)
	}
	defer cleanup()

	if len(queue) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(queue))
	}
	meta := queue[0].Meta
	if meta.Name != "report.txt" {
		t.Errorf("expected name report.txt, got %s", meta.Name)
	}
	if meta.Size != 12 {
		t.Errorf("expected size 12, got %d", meta.Size)
	}
	if meta.Type == "" {
		t.Error("expected a mime type")
	}
	if meta.LastModified == 0 {
		t.Error("expected a last-modified timestamp")
	}
}

func TestBuildQueueRejectsMissingAndDirectories(t *testing.T) {
	if _, _, err := buildQueue([]string{"/does/not/exist"}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, _, err := buildQueue([]string{t.TempDir()}); err == nil {
		t.Error("expected error for directory")
	}
	if _, _, err := buildQueue(nil); err == nil {
		t.Error("expected error for empty path list")
	}
}

func TestMimeTypeFallsBackToOctetStream(t *testing.T) {
	if got := mimeType("archive.unknownext"); got != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %s", got)
	}
	if got := mimeType("notes.txt"); got == "application/octet-stream" {
		t.Errorf("expected a real mime type for .txt, got %s", got)
	}
}

func TestUniquePathSuffixesCollisions(t *testing.T) {
	dir := t.TempDir()

	first := uniquePath(dir, "photo.jpg")
	if first != filepath.Join(dir, "photo.jpg") {
		t.Errorf("expected unsuffixed path on first use, got %s", first)
	}
	if err := os.WriteFile(first, nil, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	second := uniquePath(dir, "photo.jpg")
	if second != filepath.Join(dir, "photo (1).jpg") {
		t.Errorf("expected photo (1).jpg, got %s", second)
	}
	if err := os.WriteFile(second, nil, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	third := uniquePath(dir, "photo.jpg")
	if third != filepath.Join(dir, "photo (2).jpg") {
		t.Errorf("expected photo (2).jpg, got %s", third)
	}
}

func TestHandleSenderMessageRoutesDoneAck(t *testing.T) {
	p := &Peer{logger: quietLogger()}
	ex := &exchange{acks: make(chan int64, 1)}

	ack, err := json.Marshal(protocol.BuildDoneAck(20000))
	if err != nil {
		t.Fatalf("failed to marshal ack: %v", err)
	}

	// Binary frames and unreadable control messages are ignored.
	p.handleSenderMessage(ex, false, []byte{0x01, 0x02})
	p.handleSenderMessage(ex, true, []byte("not json"))
	select {
	case <-ex.acks:
		t.Fatal("no ack should have been routed yet")
	default:
	}

	p.handleSenderMessage(ex, true, ack)
	select {
	case got := <-ex.acks:
		if got != 20000 {
			t.Errorf("expected acknowledged size 20000, got %d", got)
		}
	default:
		t.Fatal("expected ack to be routed")
	}
}
