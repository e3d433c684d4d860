package executor

import "math"

// lotDecimals models the lot-size granularity of the instruments in scope.
// A production system should source this from exchange instrument metadata.
const lotDecimals = 3

// CalcQuantity converts a target notional (USDT), leverage, and price into
// an order quantity rounded to the lot granularity and floored at minQty.
//
// A missing or non-positive price still yields an executable order: the
// conservative minQty floor is returned rather than an error, so an alert
// without a price executes minimally instead of failing.
func CalcQuantity(price, notionalUSDT float64, leverage int, minQty float64) float64 {
	if price <= 0 {
		return minQty
	}
	qty := notionalUSDT * float64(leverage) / price
	pow := math.Pow10(lotDecimals)
	qty = math.Round(qty*pow) / pow
	if qty < minQty {
		return minQty
	}
	return qty
}
