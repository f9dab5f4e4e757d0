// Package p2pmsg implements the node-to-node and gateway wire framing (§6.1):
// a 2-byte big-endian length prefix followed by a UTF-8 JSON object, capped
// at MaxFrameSize bytes. It replaces the source's pickle/JSON ad-hoc parsing
// with a tagged union over message kinds (§9): Decode never returns a
// silently-dropped message, an unrecognized "type"/"action" becomes an
// explicit ErrUnknownKind.
package p2pmsg

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
)

// MaxFrameSize is the largest frame this protocol will read or write.
var MaxFrameSize = units.Base2Bytes(65535)

// ErrFrameTooLarge is returned by WriteFrame when payload exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("p2pmsg: frame exceeds maximum size")

// ErrUnknownKind is returned by Decode when a frame's discriminator field
// does not match any known message Kind.
var ErrUnknownKind = errors.New("p2pmsg: unknown message kind")

// WriteFrame writes a 2-byte big-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if int64(len(payload)) > int64(MaxFrameSize) {
		return ErrFrameTooLarge
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "p2pmsg: write length prefix")
	}
	_, err := w.Write(payload)
	return errors.Wrap(err, "p2pmsg: write payload")
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "p2pmsg: read payload")
	}
	return buf, nil
}

// WriteJSON marshals v and writes it as one length-prefixed frame.
func WriteJSON(w io.Writer, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "p2pmsg: marshal")
	}
	return WriteFrame(w, buf)
}

// ReadJSON reads one length-prefixed frame and unmarshals it into v.
func ReadJSON(r io.Reader, v interface{}) error {
	buf, err := ReadFrame(r)
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(buf, v), "p2pmsg: unmarshal")
}
