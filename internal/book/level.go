package book

import "vidar/internal/common"

// level is one price's aggregate resting volume on one side. A level is
// erased from its tree the instant its volume reaches zero (spec.md §3).
type level struct {
	price  common.Price
	volume int64 // sum of common.Qty; kept as int64 to simplify +/- without wraparound checks
}
