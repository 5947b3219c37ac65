package jpegt

// arenaAlign is the alignment granularity for arena allocations.
const arenaAlign = 8

// arena is a linear allocator over the caller-supplied work area. With a
// nil work area it falls back to the Go heap while still tracking how much
// a fixed work area would have needed, so WorkUsed stays meaningful.
type arena struct {
	buf  []byte
	off  int
	heap bool
}

func newArena(buf []byte) *arena {
	if buf == nil {
		return &arena{heap: true}
	}

	return &arena{buf: buf}
}

// bytes allocates n zeroed bytes. Allocations never move and remain valid
// for the lifetime of the session.
func (a *arena) bytes(n int) ([]byte, error) {
	off := (a.off + arenaAlign - 1) &^ (arenaAlign - 1)
	if !a.heap && n > len(a.buf)-off {
		return nil, ErrWorkArea
	}

	a.off = off + n

	if a.heap {
		return make([]byte, n), nil
	}

	p := a.buf[off : off+n : off+n]
	for i := range p {
		p[i] = 0
	}

	return p, nil
}

// used reports the high-water mark in bytes, including alignment padding.
func (a *arena) used() int {
	return a.off
}
