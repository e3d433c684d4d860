package domain

// Position is the net position in one instrument under single-netting mode:
// positive quantity is net long, negative is net short, zero is flat.
//
// Positions are never cached locally. The exchange is the single source of
// truth and is re-read immediately before every routing decision, because
// local state can drift from exchange-side fills, manual intervention, or
// liquidation.
type Position struct {
	Symbol   string
	Quantity float64 // signed
}

// Long reports whether the position is net long.
func (p Position) Long() bool { return p.Quantity > 0 }

// Short reports whether the position is net short.
func (p Position) Short() bool { return p.Quantity < 0 }

// Flat reports whether there is no open exposure.
func (p Position) Flat() bool { return p.Quantity == 0 }

// Abs returns the unsigned position magnitude.
func (p Position) Abs() float64 {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}
