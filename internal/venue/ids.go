package venue

import (
	"sync/atomic"
	"time"
)

// idSequence hands out monotonically increasing venue order ids, seeded
// from the wall clock so ids stay unique across restarts.
type idSequence struct {
	next uint64
}

func newIDSequence(seed uint64) *idSequence {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &idSequence{next: seed}
}

func (g *idSequence) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
