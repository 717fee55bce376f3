package ipc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := Encode(MsgStatusRequest, 42, StatusRequest{DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if got.Header.Magic != ProtocolMagic {
		t.Errorf("magic = %x, want %x", got.Header.Magic, ProtocolMagic)
	}
	if got.Header.Type != MsgStatusRequest {
		t.Errorf("type = %#04x, want %#04x", uint16(got.Header.Type), uint16(MsgStatusRequest))
	}
	if got.Header.RequestID != 42 {
		t.Errorf("request id = %d, want 42", got.Header.RequestID)
	}

	var req StatusRequest
	if err := got.Decode(&req); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if req.DocumentID != "doc-1" {
		t.Errorf("document id = %q, want %q", req.DocumentID, "doc-1")
	}
}

func TestEmptyPayloadRoundTrip(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if got.Header.Type != MsgPing {
		t.Errorf("type = %#04x, want ping", uint16(got.Header.Type))
	}
	if len(got.Payload) != 0 {
		t.Errorf("payload length = %d, want 0", len(got.Payload))
	}
}

func TestReadMessageRejectsBadMagic(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)
	msg.Header.Magic = 0xDEADBEEF

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := ReadMessage(&buf); err == nil {
		t.Fatal("expected rejection of bad magic")
	}
}

func TestReadMessageRejectsNewerVersion(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)
	msg.Header.Version = ProtocolVersion + 1

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := ReadMessage(&buf); err == nil {
		t.Fatal("expected rejection of newer protocol version")
	}
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], ProtocolMagic)
	buf[4] = ProtocolVersion
	binary.BigEndian.PutUint16(buf[6:8], uint16(MsgEditEvent))
	binary.BigEndian.PutUint32(buf[12:16], MaxPayloadSize+1)

	if _, err := ReadMessage(bytes.NewReader(buf)); err == nil {
		t.Fatal("expected rejection of oversized payload")
	}
}
