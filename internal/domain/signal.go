package domain

import (
	"strings"
	"time"
)

// Action is the normalized trading verb extracted from an inbound alert.
type Action string

const (
	// ActionLong opens or adds to a long position unconditionally.
	ActionLong Action = "long"
	// ActionSell closes an existing long; whether it may also open a short
	// is controlled by the allow_short_on_sell configuration flag.
	ActionSell Action = "sell"
	// ActionShort opens or adds to a short position unconditionally.
	ActionShort Action = "short"
	// ActionCover closes an existing short.
	ActionCover Action = "cover"
	// ActionClose flattens both sides regardless of current position sign.
	ActionClose Action = "close"
	// ActionIgnore is a recognized no-op verb (e.g. informational alerts).
	ActionIgnore Action = "ignore"
	// ActionUnknown is anything the parser does not recognize.
	ActionUnknown Action = "unknown"
)

// ParseAction maps a raw alert verb to a normalized Action. Matching is
// case-insensitive and tolerant of surrounding whitespace.
func ParseAction(raw string) Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return ActionLong
	case "sell":
		return ActionSell
	case "short":
		return ActionShort
	case "cover":
		return ActionCover
	case "close", "exit", "flat":
		return ActionClose
	case "ignore", "none", "info":
		return ActionIgnore
	default:
		return ActionUnknown
	}
}

// SignalEvent is one normalized inbound alert. It is produced once by the
// webhook boundary, passed by value into the router, and never mutated.
type SignalEvent struct {
	AlertID    string    `json:"alert_id"`   // dedup key; assigned per missing_id_policy when absent
	RawAction  string    `json:"raw_action"` // verb exactly as received, kept for error reporting
	Action     Action    `json:"action"`
	Symbol     string    `json:"symbol"`    // exchange symbol after normalization
	Price      float64   `json:"price"`     // 0 when the alert carried no price
	Timeframe  string    `json:"timeframe,omitempty"`
	Timestamp  time.Time `json:"timestamp"` // zero when the alert carried no timestamp
	ReceivedAt time.Time `json:"received_at"`
}
