package protocol

import (
	"encoding/json"
	"testing"
)

func TestBuildMetadataTotalSize(t *testing.T) {
	files := []FileMeta{
		{Name: "a.txt", Type: "text/plain", Size: 20000},
		{Name: "b.bin", Type: "application/octet-stream", Size: 4096},
		{Name: "empty", Size: 0},
	}
	meta := BuildMetadata(files)

	if meta.Type != ControlMetadata {
		t.Errorf("expected type %q, got %q", ControlMetadata, meta.Type)
	}
	if meta.TotalSize != 24096 {
		t.Errorf("expected total size 24096, got %d", meta.TotalSize)
	}
	if len(meta.Files) != 3 {
		t.Errorf("expected 3 files, got %d", len(meta.Files))
	}
	if meta.Timestamp == 0 {
		t.Error("expected non-zero timestamp")
	}
}

func TestDecodeControlMetadata(t *testing.T) {
	meta := BuildMetadata([]FileMeta{{Name: "a.txt", Size: 10}})
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded, err := DecodeControl(data)
	if err != nil {
		t.Fatalf("DecodeControl failed: %v", err)
	}

	got, ok := decoded.(*Metadata)
	if !ok {
		t.Fatalf("expected *Metadata, got %T", decoded)
	}
	if got.TotalSize != 10 {
		t.Errorf("expected total size 10, got %d", got.TotalSize)
	}
	if got.Files[0].Name != "a.txt" {
		t.Errorf("expected a.txt, got %s", got.Files[0].Name)
	}
}

func TestDecodeControlDoneAck(t *testing.T) {
	data, err := json.Marshal(BuildDoneAck(1234))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded, err := DecodeControl(data)
	if err != nil {
		t.Fatalf("DecodeControl failed: %v", err)
	}

	ack, ok := decoded.(*DoneAck)
	if !ok {
		t.Fatalf("expected *DoneAck, got %T", decoded)
	}
	if ack.ReceivedSize != 1234 {
		t.Errorf("expected 1234, got %d", ack.ReceivedSize)
	}
}

func TestDecodeControlUnknownType(t *testing.T) {
	if _, err := DecodeControl([]byte(`{"type":"bogus"}`)); err == nil {
		t.Error("expected error for unknown control type")
	}
}

func TestDecodeControlInvalidJSON(t *testing.T) {
	if _, err := DecodeControl([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestBuildOfferEnvelope(t *testing.T) {
	env := BuildOfferEnvelope("peerB", json.RawMessage(`{"sdp":"v=0..."}`))

	if env.Event != EventOffer {
		t.Errorf("expected event %q, got %q", EventOffer, env.Event)
	}
	if env.Target != "peerB" {
		t.Errorf("expected target peerB, got %s", env.Target)
	}
	if env.Source != "" {
		t.Errorf("expected empty source (injected by relay), got %s", env.Source)
	}
}

func TestBuildPeersEnvelopeNeverNil(t *testing.T) {
	env := BuildPeersEnvelope(nil)

	if env.Peers == nil {
		t.Error("expected non-nil peers slice")
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Event != EventPeers {
		t.Errorf("expected event %q, got %q", EventPeers, decoded.Event)
	}
}
