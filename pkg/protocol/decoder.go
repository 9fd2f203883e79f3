package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// Limits on what a payload from the network may ask the decoder to
// allocate.
const (
	MaxStringLen       = 256 * 1024 // bytes in one string field
	MaxCollectionCount = 100_000    // patches, attributes or children in one list
	MaxSnapshotDepth   = 256        // nesting of an InsertNode/ReplaceNode subtree
)

// Errors returned for malformed payloads.
var (
	ErrVarintOverflow     = errors.New("protocol: varint overflow")
	ErrInvalidBool        = errors.New("protocol: invalid boolean value")
	ErrAllocationTooLarge = errors.New("protocol: allocation size exceeds limit")
	ErrCollectionTooLarge = errors.New("protocol: collection count exceeds limit")
	ErrMaxDepthExceeded   = errors.New("protocol: maximum nesting depth exceeded")
)

// Decoder reads the fields of one frame payload in wire order. Every read
// is bounds checked; a short payload yields io.ErrUnexpectedEOF.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder reads payload. The payload must not change while in use.
func NewDecoder(payload []byte) *Decoder {
	return &Decoder{buf: payload}
}

// Remaining returns the unread length of the payload.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF reports whether the whole payload was consumed.
func (d *Decoder) EOF() bool {
	return d.Remaining() <= 0
}

// Done returns ErrTrailingBytes if the payload holds more than its
// message.
func (d *Decoder) Done() error {
	if d.EOF() {
		return nil
	}
	return ErrTrailingBytes
}

// take returns the next n bytes and advances past them.
func (d *Decoder) take(n int) ([]byte, error) {
	if n > d.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadByte reads an opcode, frame kind or enum value.
func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUvarint reads a sequence number, count or length.
func (d *Decoder) ReadUvarint() (uint64, error) {
	v, n := DecodeUvarint(d.buf[d.pos:])
	if n == -1 {
		return 0, io.ErrUnexpectedEOF
	}
	if n < 0 {
		return 0, ErrVarintOverflow
	}
	d.pos += n
	return v, nil
}

// ReadString reads a varint-prefixed UTF-8 value. Lengths above
// MaxStringLen are refused before any copy is made.
func (d *Decoder) ReadString() (string, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", ErrAllocationTooLarge
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBool reads a flag byte. Only 0 and 1 are valid.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	switch {
	case err != nil:
		return false, err
	case b > 1:
		return false, ErrInvalidBool
	}
	return b == 1, nil
}

// ReadUint16 reads an error code in network byte order.
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint64 reads a ping timestamp in network byte order.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadCount reads the number of patches, attributes or children that
// follow. Each takes at least one byte, so a count above the unread length
// is rejected before the caller allocates for it.
func (d *Decoder) ReadCount() (int, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > MaxCollectionCount {
		return 0, ErrCollectionTooLarge
	}
	if n > uint64(d.Remaining()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(n), nil
}
