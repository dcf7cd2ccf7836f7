package daemon

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameSize guards against a corrupt or hostile length prefix
// allocating an unbounded buffer.
const maxFrameSize = 64 << 20

// writeFrame writes a 4-byte big-endian length prefix followed by the
// JSON-encoded payload.
func writeFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed JSON frame and unmarshals it into
// v. Returns io.EOF (unwrapped) when the peer closed the connection
// cleanly between frames, so callers can distinguish a graceful
// disconnect from a mid-frame read error.
func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("reading frame body: %w", err)
	}

	return json.Unmarshal(data, v)
}

// readEnvelope reads one frame as an Envelope with Payload left as raw
// JSON, so the dispatcher can re-decode it into the concrete request
// type once Type is known.
func readEnvelope(r io.Reader) (string, json.RawMessage, error) {
	var raw struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := readFrame(r, &raw); err != nil {
		return "", nil, err
	}
	return raw.Type, raw.Payload, nil
}

func writeEnvelope(w io.Writer, typ string, payload any) error {
	return writeFrame(w, Envelope{Type: typ, Payload: payload})
}
