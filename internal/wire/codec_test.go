package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}
	data := Encode(Frame(jpeg))
	require.Equal(t, byte(TypeFrame), data[0])

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeFrame, msg.Type)
	assert.Equal(t, jpeg, msg.Binary)
}

func TestEncodeDecodeAudio(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xC0}
	msg, err := Decode(Encode(Audio(pcm)))
	require.NoError(t, err)
	assert.Equal(t, TypeAudio, msg.Type)
	assert.Equal(t, pcm, msg.Binary)
}

func TestAudioPayloadStartingWithTagByte(t *testing.T) {
	// PCM bytes that begin with a valid tag value must still decode as
	// audio; only the leading tag byte determines the type.
	pcm := []byte{byte(TypeFrame), byte(TypeControl), 0x03, 0x04}
	msg, err := Decode(Encode(Audio(pcm)))
	require.NoError(t, err)
	assert.Equal(t, TypeAudio, msg.Type)
	assert.Equal(t, pcm, msg.Binary)
}

func TestEncodeDecodeTranscript(t *testing.T) {
	msg, err := Decode(Encode(Transcript("hello session")))
	require.NoError(t, err)
	assert.Equal(t, TypeTranscript, msg.Type)
	assert.Equal(t, "hello session", msg.Text)
}

func TestEncodeDecodeTranscriptUTF8(t *testing.T) {
	text := "caféの話 résumé"
	msg, err := Decode(Encode(Transcript(text)))
	require.NoError(t, err)
	assert.Equal(t, text, msg.Text)
}

func TestEncodeDecodeControl(t *testing.T) {
	msg, err := Decode(Encode(Control(ControlStop)))
	require.NoError(t, err)
	assert.Equal(t, TypeControl, msg.Type)
	assert.JSONEq(t, `{"type":"stop"}`, msg.Text)
}

func TestDecodeEmptyMessage(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0x7F, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestDecodeTruncatedTranscript(t *testing.T) {
	data := Encode(Transcript("truncate me"))
	_, err := Decode(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeTranscriptMissingLength(t *testing.T) {
	_, err := Decode([]byte{byte(TypeTranscript)})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeEmptyBinaryPayloads(t *testing.T) {
	msg, err := Decode(Encode(Audio(nil)))
	require.NoError(t, err)
	assert.Equal(t, TypeAudio, msg.Type)
	assert.Empty(t, msg.Binary)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "frame", TypeFrame.String())
	assert.Equal(t, "audio", TypeAudio.String())
	assert.Equal(t, "transcript", TypeTranscript.String())
	assert.Equal(t, "control", TypeControl.String())
	assert.Equal(t, "unknown(0x7f)", Type(0x7F).String())
}
