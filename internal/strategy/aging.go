package strategy

// agingRing is the fixed-width bucket cancel-by-age structure from spec.md
// §4.5 and §9 ("Aging ring instead of per-order ticks"): orders placed this
// tick start in bucket 0; each tick shifts every bucket up by one; orders
// already in the last bucket when the ring rotates are returned for
// cancellation.
//
// Rotation moves each bucket's slice header up one index, so it costs
// O(maxAge) per tick regardless of how many orders are tracked;
// cancellation is O(expired).
type agingRing struct {
	buckets [][]uint64 // buckets[i] holds order ids age i ticks old
	maxAge  uint32
}

func newAgingRing(maxAge uint32) *agingRing {
	return &agingRing{buckets: make([][]uint64, maxAge+1), maxAge: maxAge}
}

// Track places orderID in the youngest bucket (age 0).
func (r *agingRing) Track(orderID uint64) {
	r.buckets[0] = append(r.buckets[0], orderID)
}

// Untrack removes orderID from whichever bucket holds it, for an order that
// fills or is explicitly canceled before aging out.
func (r *agingRing) Untrack(orderID uint64) {
	for i, bucket := range r.buckets {
		for j, id := range bucket {
			if id == orderID {
				r.buckets[i] = append(bucket[:j], bucket[j+1:]...)
				return
			}
		}
	}
}

// Rotate shifts every order up one bucket and returns the ids that just
// aged past maxAge, clearing their bucket.
func (r *agingRing) Rotate() []uint64 {
	expired := r.buckets[r.maxAge]
	for age := int(r.maxAge); age > 0; age-- {
		r.buckets[age] = r.buckets[age-1]
	}
	r.buckets[0] = nil
	return expired
}
