// Package wire defines the binary framing used on the capture stream.
//
// Every message is one WebSocket binary frame: a single type tag byte
// followed by the payload. Frame and Audio payloads are consumed whole
// (raw JPEG bytes, raw PCM16 little-endian samples); Transcript and
// Control payloads carry a uvarint length prefix before their UTF-8
// bytes. The tag is mandatory on every message, including audio, so a
// PCM buffer that happens to start with a tag value can never be
// misread as a different message type.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Type identifies the payload kind of a wire message.
type Type byte

const (
	TypeFrame      Type = 0x01 // payload: raw JPEG bytes
	TypeAudio      Type = 0x02 // payload: PCM16 little-endian samples
	TypeTranscript Type = 0x03 // payload: uvarint length + UTF-8 text
	TypeControl    Type = 0x04 // payload: uvarint length + JSON text
)

func (t Type) String() string {
	switch t {
	case TypeFrame:
		return "frame"
	case TypeAudio:
		return "audio"
	case TypeTranscript:
		return "transcript"
	case TypeControl:
		return "control"
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Message is one decoded wire unit. Binary is set for Frame/Audio,
// Text for Transcript/Control.
type Message struct {
	Type   Type
	Binary []byte
	Text   string
}

// Decode errors. Malformed messages are dropped by callers; they never
// close the connection.
var (
	ErrEmptyMessage = errors.New("wire: empty message")
	ErrUnknownTag   = errors.New("wire: unknown type tag")
	ErrTruncated    = errors.New("wire: truncated payload")
)

// Frame builds a Frame message from JPEG bytes.
func Frame(jpeg []byte) Message { return Message{Type: TypeFrame, Binary: jpeg} }

// Audio builds an Audio message from PCM16LE bytes.
func Audio(pcm []byte) Message { return Message{Type: TypeAudio, Binary: pcm} }

// Transcript builds a Transcript message.
func Transcript(text string) Message { return Message{Type: TypeTranscript, Text: text} }

// Control builds a Control message from a JSON string.
func Control(jsonText string) Message { return Message{Type: TypeControl, Text: jsonText} }

// Encode serializes a message: tag byte, then the payload.
func Encode(m Message) []byte {
	switch m.Type {
	case TypeFrame, TypeAudio:
		out := make([]byte, 1+len(m.Binary))
		out[0] = byte(m.Type)
		copy(out[1:], m.Binary)
		return out
	default:
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(m.Text)))
		out := make([]byte, 0, 1+n+len(m.Text))
		out = append(out, byte(m.Type))
		out = append(out, lenBuf[:n]...)
		out = append(out, m.Text...)
		return out
	}
}

// Decode parses one wire message. The returned Message aliases data's
// backing array for Frame/Audio payloads; callers that retain the payload
// past the read loop must copy it.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, ErrEmptyMessage
	}

	typ := Type(data[0])
	body := data[1:]

	switch typ {
	case TypeFrame, TypeAudio:
		return Message{Type: typ, Binary: body}, nil
	case TypeTranscript, TypeControl:
		length, n := binary.Uvarint(body)
		if n <= 0 {
			return Message{}, fmt.Errorf("%w: bad length prefix", ErrTruncated)
		}
		body = body[n:]
		if uint64(len(body)) < length {
			return Message{}, fmt.Errorf("%w: want %d bytes, have %d", ErrTruncated, length, len(body))
		}
		return Message{Type: typ, Text: string(body[:length])}, nil
	default:
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, data[0])
	}
}
