package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Frame is the JSON object exchanged over the socket in both directions.
type Frame struct {
	ID        string          `json:"id,omitempty"`
	Type      EventKind       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

type wireFrame struct {
	ID        string          `json:"id"`
	Type      EventKind       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.Number     `json:"timestamp"`
	SessionID string          `json:"session_id"`
}

var emptyObject = json.RawMessage(`{}`)

// Decode parses one inbound frame and validates its payload against the
// record for its kind. Any failure is returned as *ProtocolError.
func Decode(raw []byte) (Event, error) {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Event{}, &ProtocolError{Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}
	if wf.Type == "" {
		return Event{}, &ProtocolError{ID: wf.ID, Err: fmt.Errorf("%w: missing type", ErrMalformedFrame)}
	}
	if !wf.Type.Valid() {
		return Event{}, &ProtocolError{Kind: wf.Type, ID: wf.ID, Err: ErrUnknownKind}
	}
	if wf.Type.RequiresID() && wf.ID == "" {
		return Event{}, &ProtocolError{Kind: wf.Type, Err: ErrMissingID}
	}

	ts, err := parseTimestamp(wf.Timestamp)
	if err != nil {
		return Event{}, &ProtocolError{Kind: wf.Type, ID: wf.ID, Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}

	payload, err := decodePayload(wf.Type, wf.Data)
	if err != nil {
		return Event{}, &ProtocolError{Kind: wf.Type, ID: wf.ID, Err: err}
	}

	return Event{
		ID:        wf.ID,
		Kind:      wf.Type,
		Timestamp: ts,
		SessionID: wf.SessionID,
		Payload:   payload,
	}, nil
}

func decodePayload(kind EventKind, data json.RawMessage) (Payload, error) {
	ptr, _ := newPayload(kind)

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = emptyObject
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("%w: data must be an object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	p := reflect.ValueOf(ptr).Elem().Interface().(Payload)
	if err := validate(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

func validate(p Payload) error {
	switch d := p.(type) {
	case FileContentData:
		if d.Path == "" {
			return fmt.Errorf("path is required")
		}
	case GetFileContentData:
		if d.Path == "" {
			return fmt.Errorf("path is required")
		}
	case SaveFileData:
		if d.Path == "" {
			return fmt.Errorf("path is required")
		}
	case FileTreeData:
		return validateTree(d.Tree)
	}
	return nil
}

func validateTree(nodes []FileNode) error {
	for _, n := range nodes {
		if n.Path == "" && n.Name == "" {
			return fmt.Errorf("file node without name or path")
		}
		if err := validateTree(n.Children); err != nil {
			return err
		}
	}
	return nil
}

// parseTimestamp accepts integer or fractional epoch millis.
func parseTimestamp(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		if i < 0 {
			return 0, fmt.Errorf("negative timestamp %d", i)
		}
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", n.String())
	}
	return int64(f), nil
}

// NewFrame builds an outbound frame. The session id is stamped both inside
// data and on the envelope.
func NewFrame(id string, p Outbound, sessionID string, now time.Time) (Frame, error) {
	stamped := p.WithSessionID(sessionID)
	data, err := json.Marshal(stamped)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	return Frame{
		ID:        id,
		Type:      p.Kind(),
		Data:      data,
		Timestamp: NowMillis(now),
		SessionID: sessionID,
	}, nil
}

// Encode serialises a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	if len(f.Data) == 0 {
		f.Data = emptyObject
	}
	return json.Marshal(f)
}

// FrameOf converts a decoded event back into its wire form.
func FrameOf(ev Event) (Frame, error) {
	var data json.RawMessage = emptyObject
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return Frame{}, fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
		}
		data = b
	}
	return Frame{
		ID:        ev.ID,
		Type:      ev.Kind,
		Data:      data,
		Timestamp: ev.Timestamp,
		SessionID: ev.SessionID,
	}, nil
}
