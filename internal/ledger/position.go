package ledger

import "vidar/internal/common"

// Position is one symbol's net signed share holding, carried at a single
// weighted-average cost basis (glossary: "Realized/Unrealized P&L").
type Position struct {
	Symbol      common.SymbolId
	Qty         int64 // positive = long, negative = short
	AvgPrice    common.Price
	RealizedPnL int64 // minor units (1/10000), same scale as common.Price
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func sameSign(a, b int64) bool {
	return (a >= 0) == (b >= 0)
}

// Fill applies one simulated execution to the position and returns the
// realized P&L delta it produced (zero when the fill only extends the
// existing position). A Bid-side fill is a buy (qty added); an Ask-side
// fill is a sell (qty subtracted).
func (p *Position) Fill(side common.Side, qty common.Qty, price common.Price) int64 {
	signedQty := int64(qty)
	if side == common.Ask {
		signedQty = -signedQty
	}

	if p.Qty == 0 || sameSign(p.Qty, signedQty) {
		totalCost := int64(p.AvgPrice)*abs64(p.Qty) + int64(price)*abs64(signedQty)
		p.Qty += signedQty
		if p.Qty != 0 {
			p.AvgPrice = common.Price(totalCost / abs64(p.Qty))
		} else {
			p.AvgPrice = 0
		}
		return 0
	}

	// Opposite-direction fill: reduces, closes, or flips the position.
	closingQty := abs64(signedQty)
	if abs64(p.Qty) < closingQty {
		closingQty = abs64(p.Qty)
	}

	var pnlPerShare int64
	if p.Qty > 0 {
		pnlPerShare = int64(price) - int64(p.AvgPrice) // closing a long via a sell
	} else {
		pnlPerShare = int64(p.AvgPrice) - int64(price) // closing a short via a buy
	}
	realized := pnlPerShare * closingQty
	p.RealizedPnL += realized

	if abs64(signedQty) <= abs64(p.Qty) {
		p.Qty += signedQty
		if p.Qty == 0 {
			p.AvgPrice = 0
		}
		return realized
	}

	// Flip: the fill closes the old position entirely and opens a new one,
	// on the opposite side, for the remainder at the fill price.
	leftover := abs64(signedQty) - abs64(p.Qty)
	if signedQty < 0 {
		p.Qty = -leftover
	} else {
		p.Qty = leftover
	}
	p.AvgPrice = price
	return realized
}
