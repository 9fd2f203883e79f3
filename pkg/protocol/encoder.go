package protocol

import "encoding/binary"

// Encoder builds a frame payload. Fields are appended in wire order;
// nothing is written to the connection until the payload is framed.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder sized for a typical event or control
// payload. Patch batches grow the buffer as needed.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Reset drops the payload so the buffer can hold the next one.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Bytes returns the payload built so far. It aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// WriteByte appends an opcode, frame kind or enum value. It cannot fail,
// so it does not implement io.ByteWriter.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteUvarint appends a sequence number, count or length.
func (e *Encoder) WriteUvarint(v uint64) {
	e.buf = AppendUvarint(e.buf, v)
}

// WriteString appends an HID, tag, attribute or text value as a varint
// byte length and the raw UTF-8.
func (e *Encoder) WriteString(s string) {
	e.WriteUvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteBool appends a flag byte, 1 for true.
func (e *Encoder) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	e.buf = append(e.buf, v)
}

// WriteUint16 appends an error code in network byte order.
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

// WriteUint64 appends a ping timestamp in network byte order.
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
}
