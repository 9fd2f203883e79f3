package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 6

	// MaxPayloadSize is the largest payload a frame may carry (1MB).
	MaxPayloadSize = 1 << 20
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameEvent   FrameType = 0x01 // Client → Server events
	FramePatches FrameType = 0x02 // Server → Client patches
	FrameControl FrameType = 0x03 // Control messages (ping, resync, close)
	FrameError   FrameType = 0x05 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameEvent:
		return "Event"
	case FramePatches:
		return "Patches"
	case FrameControl:
		return "Control"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	// FlagResync marks a patches frame that replaces the whole tree.
	FlagResync FrameFlags = 0x01
)

// Has returns true if the flags contain flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
	ErrTrailingBytes    = errors.New("protocol: trailing bytes after frame")
)

// Frame is a protocol frame: header plus payload.
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame creates a frame without flags.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame including its header.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	binary.BigEndian.PutUint32(buf[2:FrameHeaderSize], uint32(len(f.Payload)))
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame decodes a frame that occupies all of data, as a WebSocket
// message does.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	ft := FrameType(data[0])
	if !ft.valid() {
		return nil, ErrInvalidFrameType
	}
	length := binary.BigEndian.Uint32(data[2:FrameHeaderSize])
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	rest := data[FrameHeaderSize:]
	if uint32(len(rest)) < length {
		return nil, io.ErrUnexpectedEOF
	}
	if uint32(len(rest)) > length {
		return nil, ErrTrailingBytes
	}
	payload := make([]byte, length)
	copy(payload, rest)
	return &Frame{Type: ft, Flags: FrameFlags(data[1]), Payload: payload}, nil
}

// ReadFrame reads one frame from a stream.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	ft := FrameType(header[0])
	if !ft.valid() {
		return nil, ErrInvalidFrameType
	}
	length := binary.BigEndian.Uint32(header[2:])
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return &Frame{Type: ft, Flags: FrameFlags(header[1]), Payload: payload}, nil
}

// WriteFrame writes f to w.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

func (ft FrameType) valid() bool {
	switch ft {
	case FrameEvent, FramePatches, FrameControl, FrameError:
		return true
	}
	return false
}
