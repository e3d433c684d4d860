package domain

import (
	"encoding/json"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderRequest describes one market order to be placed on the exchange. It is
// constructed by the router and executed by the exchange client.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Quantity   float64 // strictly positive, rounded to lot precision
	ReduceOnly bool
}

// ExecutionResult records the outcome of one order attempt. The router emits
// zero, one, or two of these per inbound signal (close flattens both sides).
type ExecutionResult struct {
	ID         string          `json:"id"` // UUID assigned at creation
	AlertID    string          `json:"alert_id"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Side       OrderSide       `json:"side,omitempty"`
	Quantity   float64         `json:"quantity"`
	ReduceOnly bool            `json:"reduce_only"`
	Skipped    bool            `json:"skipped"`
	Reason     string          `json:"reason,omitempty"`   // populated when Skipped
	Response   json.RawMessage `json:"response,omitempty"` // raw exchange response, nil on skip or error
	Error      string          `json:"error,omitempty"`    // populated when the exchange call failed
	At         time.Time       `json:"at"`
}

// OK reports whether the attempt placed an order without error.
func (r ExecutionResult) OK() bool {
	return !r.Skipped && r.Error == ""
}
