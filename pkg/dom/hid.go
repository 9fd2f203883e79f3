package dom

import "strconv"

// hidSeq hands out the hydration IDs "h1", "h2", ... of one document.
// IDs are never reused, so an event aimed at a released node cannot reach
// a newer one.
type hidSeq uint64

func (s *hidSeq) next() string {
	*s++
	return "h" + strconv.FormatUint(uint64(*s), 10)
}
