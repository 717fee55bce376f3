// Package ipc provides inter-process communication between the reviewd
// daemon and client tools (CLI, editor plugins).
//
// The protocol is a request/response exchange over a unix socket. Each
// message carries a fixed-size binary header followed by a JSON payload.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Protocol version for compatibility checking
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x52565043 // "RVPC" - Reviewd IPC
)

// MaxPayloadSize caps a single message payload.
const MaxPayloadSize = 16 * 1024 * 1024

// MessageType identifies the type of IPC message
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing  MessageType = 0x0001
	MsgPong  MessageType = 0x0002
	MsgError MessageType = 0x0003

	// Status messages (0x01xx)
	MsgStatusRequest  MessageType = 0x0100
	MsgStatusResponse MessageType = 0x0101

	// Edit events (0x02xx)
	MsgEditEvent MessageType = 0x0200
	MsgEventAck  MessageType = 0x0201

	// Payload inspection (0x03xx)
	MsgPayloadRequest  MessageType = 0x0300
	MsgPayloadResponse MessageType = 0x0301

	// Summary submission (0x04xx)
	MsgSummarySubmit MessageType = 0x0400
	MsgVerdict       MessageType = 0x0401
)

// Header is the fixed-size message header (16 bytes)
type Header struct {
	Magic     uint32      // Protocol magic number
	Version   uint8       // Protocol version
	Flags     uint8       // Reserved
	Type      MessageType // Message type
	RequestID uint32      // Request ID for correlation
	Length    uint32      // Payload length (not including header)
}

// HeaderSize is the size of the header in bytes
const HeaderSize = 16

// Message wraps a header and payload
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Encode marshals v and wraps it in a message of the given type.
func Encode(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %#04x payload: %w", uint16(msgType), err)
	}
	return NewMessage(msgType, requestID, payload), nil
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %#04x payload: %w", uint16(m.Header.Type), err)
	}
	return nil
}

// Write writes the header to a writer
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads a header from a reader
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}

	return h, nil
}

// Write writes the message to a writer
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > MaxPayloadSize {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Request/Response payloads

// ErrorResponse is sent when an operation fails
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrNotFound       = 3
	ErrInternalError  = 4
)

// StatusRequest asks the daemon about its state. With a DocumentID it
// reports the review window for that document.
type StatusRequest struct {
	DocumentID string `json:"document_id,omitempty"`
}

// WindowStatus describes one open review window.
type WindowStatus struct {
	DocumentID string    `json:"document_id"`
	Opened     time.Time `json:"opened"`
	Deadline   time.Time `json:"deadline"`
	ExpectedMs int64     `json:"expected_ms"`
	Chars      int       `json:"chars"`
	Lines      int       `json:"lines"`
}

// StatusResponse reports daemon and review window state.
type StatusResponse struct {
	Version     string         `json:"version"`
	StartedAt   time.Time      `json:"started_at"`
	OpenWindows []WindowStatus `json:"open_windows,omitempty"`
	InReview    bool           `json:"in_review"`
}

// EventAck acknowledges an edit event and reports how it was classified.
type EventAck struct {
	DocumentID string `json:"document_id"`
	Class      string `json:"class"`
	InReview   bool   `json:"in_review"`
	ExpectedMs int64  `json:"expected_ms,omitempty"`
}

// PayloadRequest retrieves a cached insertion payload. An empty RecordID
// selects the most recent insertion.
type PayloadRequest struct {
	RecordID    string `json:"record_id,omitempty"`
	IncludeText bool   `json:"include_text,omitempty"`
}

// PayloadResponse describes a cached insertion payload.
type PayloadResponse struct {
	Present    bool      `json:"present"`
	RecordID   string    `json:"record_id,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	Chars      int       `json:"chars,omitempty"`
	Lines      int       `json:"lines,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Text       string    `json:"text,omitempty"`
}

// SummarySubmit pairs an explanation with a cached insertion for
// evaluation. An empty RecordID evaluates the most recent insertion.
type SummarySubmit struct {
	RecordID string `json:"record_id,omitempty"`
	Summary  string `json:"summary"`
}

// VerdictResponse carries the evaluator's judgment.
type VerdictResponse struct {
	RecordID string `json:"record_id,omitempty"`
	Verdict  string `json:"verdict"`
}
