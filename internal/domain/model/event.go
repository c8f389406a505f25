package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind discriminates the raw market event union.
type EventKind string

const (
	// EventKindTrade marks a trade execution event.
	EventKindTrade EventKind = "trade"
	// EventKindTick marks a best bid/ask quote event.
	EventKindTick EventKind = "tick"
	// EventKindBookUpdate marks an order book depth update event.
	EventKindBookUpdate EventKind = "book_update"
)

// TradeSide captures the direction of a trade's aggressor.
type TradeSide string

const (
	// TradeSideBuy marks a buy-side aggressor.
	TradeSideBuy TradeSide = "buy"
	// TradeSideSell marks a sell-side aggressor.
	TradeSideSell TradeSide = "sell"
)

// PriceLevel is a single order book price/quantity pair.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Event is the discriminated union of raw market events the pipeline ingests. Exactly one
// of Trade, Tick, or Book is populated, selected by Kind.
type Event struct {
	Kind         EventKind
	EventTime    time.Time
	InstrumentID string

	Trade *Trade
	Tick  *Tick
	Book  *BookUpdate
}

// Trade represents a single executed trade.
type Trade struct {
	TradeID  string
	Side     TradeSide
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Tick represents a top-of-book quote snapshot.
type Tick struct {
	TickID      string
	BidPrice    decimal.Decimal
	BidQuantity decimal.Decimal
	AskPrice    decimal.Decimal
	AskQuantity decimal.Decimal
}

// BookUpdate represents an order book depth update.
type BookUpdate struct {
	UpdateID string
	Bids     []PriceLevel
	Asks     []PriceLevel
}

// RawFieldNames enumerates the raw-event field names a FeatureConfig input may reference,
// per §3's invariant that inputs resolve to raw fields or prior outputs.
var RawFieldNames = map[string]struct{}{
	"trade_price":    {},
	"trade_quantity": {},
	"trade_side":     {},
	"bid_price":      {},
	"bid_quantity":   {},
	"ask_price":      {},
	"ask_quantity":   {},
}

// IsRawField reports whether name identifies a raw event field rather than a feature output.
func IsRawField(name string) bool {
	_, ok := RawFieldNames[name]
	return ok
}
