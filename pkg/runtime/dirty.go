package runtime

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// MaxSlots is the number of state slots a Dirty mask can address.
const MaxSlots = 64

// Dirty is a bitmask of invalidated state slots. Bit i corresponds to the
// component's state slot i.
type Dirty uint64

// All marks every slot dirty. It is passed to the first update after mount.
const All = ^Dirty(0)

// Bit returns the mask for slot i. It panics if i is not below MaxSlots.
func Bit(i int) Dirty {
	if i < 0 || i >= MaxSlots {
		panic(fmt.Sprintf("runtime: dirty slot %d out of range [0,%d)", i, MaxSlots))
	}
	return 1 << uint(i)
}

// Set returns d with slot i marked.
func (d Dirty) Set(i int) Dirty {
	return d | Bit(i)
}

// Has reports whether any slot in mask is marked.
func (d Dirty) Has(mask Dirty) bool {
	return d&mask != 0
}

// Any reports whether any slot is marked.
func (d Dirty) Any() bool {
	return d != 0
}

// Count returns the number of marked slots.
func (d Dirty) Count() int {
	return bits.OnesCount64(uint64(d))
}

// String lists the marked slots, e.g. "{0,2}".
func (d Dirty) String() string {
	if d == All {
		return "{all}"
	}
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for i := 0; i < MaxSlots; i++ {
		if d&Bit(i) == 0 {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(i))
		first = false
	}
	b.WriteByte('}')
	return b.String()
}
