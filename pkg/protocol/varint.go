package protocol

// MaxVarintLen is the maximum number of bytes a uint64 varint occupies.
const MaxVarintLen = 10

// AppendUvarint appends v to buf in protobuf varint encoding: seven bits
// per byte, high bit set on every byte but the last.
func AppendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// DecodeUvarint decodes a varint from the front of buf.
// It returns the value and the number of bytes read; n is -1 when buf ends
// mid-varint and -2 when the varint is longer than MaxVarintLen.
func DecodeUvarint(buf []byte) (v uint64, n int) {
	var shift uint
	for i, b := range buf {
		if i >= MaxVarintLen {
			return 0, -2
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, -1
}

// UvarintLen returns the encoded size of v.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
