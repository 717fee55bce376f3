package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"reviewd/internal/editwire"
	"reviewd/internal/review"
)

// Handler dispatches IPC requests to the review monitor.
type Handler struct {
	monitor   *review.Monitor
	version   string
	startedAt time.Time
	log       *slog.Logger
}

// NewHandler creates a message handler backed by the given monitor.
func NewHandler(monitor *review.Monitor, version string, log *slog.Logger) *Handler {
	return &Handler{
		monitor:   monitor,
		version:   version,
		startedAt: time.Now(),
		log:       log,
	}
}

// HandleMessage processes a single request and returns the response.
func (h *Handler) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgPing:
		return NewMessage(MsgPong, msg.Header.RequestID, nil), nil
	case MsgEditEvent:
		return h.handleEditEvent(msg)
	case MsgStatusRequest:
		return h.handleStatus(msg)
	case MsgPayloadRequest:
		return h.handlePayload(msg)
	case MsgSummarySubmit:
		return h.handleSummary(ctx, msg)
	default:
		h.log.Debug("unsupported message type", "type", fmt.Sprintf("%#04x", uint16(msg.Header.Type)))
		return errorMessage(msg.Header.RequestID,
			ErrInvalidRequest,
			fmt.Sprintf("unsupported message type %#04x", uint16(msg.Header.Type))), nil
	}
}

func (h *Handler) handleEditEvent(msg *Message) (*Message, error) {
	ev, err := editwire.Decode(msg.Payload)
	if err != nil {
		return errorMessage(msg.Header.RequestID, ErrInvalidRequest, err.Error()), nil
	}

	class := h.monitor.HandleEvent(ev)

	ack := EventAck{
		DocumentID: ev.DocumentID,
		Class:      class.String(),
		InReview:   h.monitor.InReviewWindow(ev.DocumentID),
	}
	if pending, ok := h.monitor.PendingFor(ev.DocumentID); ok {
		ack.ExpectedMs = pending.Expected.Milliseconds()
	}
	return Encode(MsgEventAck, msg.Header.RequestID, ack)
}

func (h *Handler) handleStatus(msg *Message) (*Message, error) {
	var req StatusRequest
	if len(msg.Payload) > 0 {
		if err := msg.Decode(&req); err != nil {
			return errorMessage(msg.Header.RequestID, ErrInvalidRequest, err.Error()), nil
		}
	}

	resp := StatusResponse{Version: h.version, StartedAt: h.startedAt}

	if req.DocumentID != "" {
		if pending, ok := h.monitor.PendingFor(req.DocumentID); ok {
			resp.InReview = true
			resp.OpenWindows = []WindowStatus{windowStatus(req.DocumentID, pending)}
		}
		return Encode(MsgStatusResponse, msg.Header.RequestID, resp)
	}

	pending := h.monitor.Pending()
	for docID, entry := range pending {
		resp.OpenWindows = append(resp.OpenWindows, windowStatus(docID, entry))
	}
	sort.Slice(resp.OpenWindows, func(i, j int) bool {
		return resp.OpenWindows[i].DocumentID < resp.OpenWindows[j].DocumentID
	})
	resp.InReview = len(resp.OpenWindows) > 0
	return Encode(MsgStatusResponse, msg.Header.RequestID, resp)
}

func (h *Handler) handlePayload(msg *Message) (*Message, error) {
	var req PayloadRequest
	if len(msg.Payload) > 0 {
		if err := msg.Decode(&req); err != nil {
			return errorMessage(msg.Header.RequestID, ErrInvalidRequest, err.Error()), nil
		}
	}

	var resp PayloadResponse

	if req.RecordID != "" {
		rec, ok := h.monitor.Record(req.RecordID)
		if !ok {
			return Encode(MsgPayloadResponse, msg.Header.RequestID, resp)
		}
		resp = PayloadResponse{
			Present:    true,
			RecordID:   rec.ID,
			DocumentID: rec.DocumentID,
			Timestamp:  rec.Timestamp,
			Chars:      rec.Chars,
			Lines:      rec.Lines,
			Summary:    rec.Summary,
		}
		if req.IncludeText {
			resp.Text = rec.Text
		}
		return Encode(MsgPayloadResponse, msg.Header.RequestID, resp)
	}

	meta, ok := h.monitor.LastPayloadMeta()
	if !ok {
		return Encode(MsgPayloadResponse, msg.Header.RequestID, resp)
	}
	resp = PayloadResponse{
		Present:    true,
		RecordID:   meta.RecordID,
		DocumentID: meta.DocumentID,
		Timestamp:  meta.Timestamp,
		Chars:      meta.Chars,
		Lines:      meta.Lines,
	}
	if rec, recOK := h.monitor.Record(meta.RecordID); recOK {
		resp.Summary = rec.Summary
		if req.IncludeText {
			resp.Text = rec.Text
		}
	}
	return Encode(MsgPayloadResponse, msg.Header.RequestID, resp)
}

func (h *Handler) handleSummary(ctx context.Context, msg *Message) (*Message, error) {
	var req SummarySubmit
	if err := msg.Decode(&req); err != nil {
		return errorMessage(msg.Header.RequestID, ErrInvalidRequest, err.Error()), nil
	}
	if req.Summary == "" {
		return errorMessage(msg.Header.RequestID, ErrInvalidRequest, "summary must not be empty"), nil
	}

	var (
		verdict string
		err     error
	)
	if req.RecordID != "" {
		verdict, err = h.monitor.SubmitSummaryFor(ctx, req.RecordID, req.Summary)
	} else {
		verdict, err = h.monitor.SubmitSummary(ctx, req.Summary)
	}
	if err != nil {
		code := ErrInternalError
		if errors.Is(err, review.ErrNoPayload) || errors.Is(err, review.ErrUnknownRecord) {
			code = ErrNotFound
		}
		return errorMessage(msg.Header.RequestID, code, err.Error()), nil
	}

	return Encode(MsgVerdict, msg.Header.RequestID, VerdictResponse{
		RecordID: req.RecordID,
		Verdict:  verdict,
	})
}

func windowStatus(docID string, pending review.PendingReview) WindowStatus {
	return WindowStatus{
		DocumentID: docID,
		Opened:     pending.Opened,
		Deadline:   pending.Deadline,
		ExpectedMs: pending.Expected.Milliseconds(),
		Chars:      pending.Chars,
		Lines:      pending.Lines,
	}
}
