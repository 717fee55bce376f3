package ipc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"reviewd/internal/editwire"
)

// ServerError is an error response returned by the daemon.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

// Client is a synchronous IPC client. Calls are serialized over one
// connection.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration

	nextRequestID atomic.Uint32
}

// Dial connects to the daemon socket.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// call sends one request and decodes the response into out. A nil out
// skips payload decoding.
func (c *Client) call(msgType MessageType, req any, wantType MessageType, out any) error {
	msg, err := Encode(msgType, c.nextRequestID.Add(1), req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := msg.Write(c.conn); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	resp, err := ReadMessage(c.conn)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.Header.RequestID != msg.Header.RequestID {
		return fmt.Errorf("response id %d does not match request id %d",
			resp.Header.RequestID, msg.Header.RequestID)
	}

	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		if err := resp.Decode(&errResp); err != nil {
			return errors.New("daemon returned an undecodable error")
		}
		return &ServerError{Code: errResp.Code, Message: errResp.Message}
	}
	if resp.Header.Type != wantType {
		return fmt.Errorf("unexpected response type %#04x", uint16(resp.Header.Type))
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Ping checks daemon liveness.
func (c *Client) Ping() error {
	return c.call(MsgPing, struct{}{}, MsgPong, nil)
}

// SendEvent delivers an edit event and returns its classification.
func (c *Client) SendEvent(ev editwire.Event) (EventAck, error) {
	var ack EventAck
	err := c.call(MsgEditEvent, ev, MsgEventAck, &ack)
	return ack, err
}

// Status reports daemon state. With a document ID it reports that
// document's review window only.
func (c *Client) Status(documentID string) (StatusResponse, error) {
	var resp StatusResponse
	err := c.call(MsgStatusRequest, StatusRequest{DocumentID: documentID}, MsgStatusResponse, &resp)
	return resp, err
}

// Payload retrieves a cached insertion payload.
func (c *Client) Payload(recordID string, includeText bool) (PayloadResponse, error) {
	var resp PayloadResponse
	err := c.call(MsgPayloadRequest, PayloadRequest{
		RecordID:    recordID,
		IncludeText: includeText,
	}, MsgPayloadResponse, &resp)
	return resp, err
}

// SubmitSummary submits an explanation for evaluation and returns the
// verdict.
func (c *Client) SubmitSummary(recordID, summary string) (VerdictResponse, error) {
	var resp VerdictResponse
	err := c.call(MsgSummarySubmit, SummarySubmit{
		RecordID: recordID,
		Summary:  summary,
	}, MsgVerdict, &resp)
	return resp, err
}
