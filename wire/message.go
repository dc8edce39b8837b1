// Package wire implements the byte-exact message framing shared by every
// duplexrpc transport: a 12-byte header (packed call id/type word, method
// id, payload length) followed by the payload bytes.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"duplexrpc/methodid"
)

// CallType is the 2-bit tag distinguishing the four message kinds a
// connection ever exchanges.
type CallType uint8

const (
	// Request expects exactly one Response or ResponseError in reply.
	Request CallType = iota
	// VoidRequest is fire-and-forget: no response is ever sent for it.
	VoidRequest
	// Response carries a successfully marshaled result payload.
	Response
	// ResponseError carries a 4-byte little-endian HRESULT-style code.
	ResponseError
)

func (t CallType) String() string {
	switch t {
	case Request:
		return "Request"
	case VoidRequest:
		return "VoidRequest"
	case Response:
		return "Response"
	case ResponseError:
		return "ResponseError"
	default:
		return fmt.Sprintf("CallType(%d)", uint8(t))
	}
}

// callIDMask keeps CallID inside its 30-bit wire field.
const callIDMask uint32 = 0x3FFFFFFF

// HeaderSize is the fixed framing prefix length in bytes: 4 (packed word)
// + 4 (MethodID) + 4 (payload length).
const HeaderSize = 12

// MessageHeader packs a 30-bit CallID and 2-bit CallType into a single
// 32-bit word on the wire, followed by a 32-bit MethodID.
type MessageHeader struct {
	CallID   uint32
	CallType CallType
	MethodID methodid.MethodID
}

func (h MessageHeader) packedWord() uint32 {
	return (h.CallID & callIDMask) | (uint32(h.CallType) << 30)
}

func unpackWord(w uint32) (callID uint32, ct CallType) {
	return w & callIDMask, CallType(w >> 30)
}

// Message is a MessageHeader plus its opaque payload.
type Message struct {
	Header  MessageHeader
	Payload []byte
}

// WriteMessage frames msg onto w: header then payload, little-endian
// throughout, exactly per the wire format in the specification.
func WriteMessage(w io.Writer, msg Message) error {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], msg.Header.packedWord())
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(msg.Header.MethodID))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(msg.Payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(msg.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(msg.Payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadMessage reads one complete framed message from r, using io.ReadFull
// so that a short read is reported rather than silently truncating the
// message.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, err
	}

	callID, ct := unpackWord(binary.LittleEndian.Uint32(hdr[0:4]))
	mid := methodid.MethodID(binary.LittleEndian.Uint32(hdr[4:8]))
	n := binary.LittleEndian.Uint32(hdr[8:12])

	var payload []byte
	if n > 0 {
		payload = make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Message{}, fmt.Errorf("wire: read payload: %w", err)
		}
	}

	return Message{
		Header: MessageHeader{
			CallID:   callID,
			CallType: ct,
			MethodID: mid,
		},
		Payload: payload,
	}, nil
}
