// Package ingress implements the single write path from raw market events into the State
// Store, per spec §4.3 ("Writers are raw-event ingestion... and node executors") and §6
// ("the core consumes a bounded queue of Event values; producers must push by monotonically
// non-decreasing event_time per instrument").
package ingress

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/infra/statestore"
)

// Raw field names written by this package, matching model.RawFieldNames from spec §3.
const (
	FieldTradePrice    = "trade_price"
	FieldTradeQuantity = "trade_quantity"
	FieldTradeSide     = "trade_side"
	FieldBidPrice      = "bid_price"
	FieldBidQuantity   = "bid_quantity"
	FieldAskPrice      = "ask_price"
	FieldAskQuantity   = "ask_quantity"
)

// buySide and sellSide encode a trade's aggressor side as a signed unit decimal so that
// trade_side participates in the same numeric series as every other raw field.
var (
	buySide  = decimal.NewFromInt(1)
	sellSide = decimal.NewFromInt(-1)
)

// Store is the subset of statestore.Store the ingestor writes through.
type Store interface {
	Write(instrumentID, featureID string, eventTime time.Time, value decimal.Decimal) bool
}

var _ Store = (*statestore.Store)(nil)

// Ingestor applies raw events to the State Store's raw-field series. Exactly one of
// Trade/Tick/Book is populated per model.Event, selected by its Kind, per spec §3. Ingestion
// is the pipeline's single write path: node executors are the only other writer, per §4.3.
type Ingestor struct {
	store Store
}

// New constructs an Ingestor over store.
func New(store Store) *Ingestor {
	return &Ingestor{store: store}
}

// Ingest applies one raw event's fields to the instrument's raw series. It reports how many
// of the event's fields were accepted; a field is rejected (and the series' dropped-out-of-
// order counter incremented) when its event_time is strictly earlier than the series'
// latest recorded sample (an equal event_time is accepted), per §5's "out-of-order raw events... are dropped" guarantee —
// enforced uniformly by statestore.Store.Write, not duplicated here.
func (in *Ingestor) Ingest(e model.Event) int {
	switch e.Kind {
	case model.EventKindTrade:
		return in.ingestTrade(e)
	case model.EventKindTick:
		return in.ingestTick(e)
	case model.EventKindBookUpdate:
		return in.ingestBook(e)
	default:
		return 0
	}
}

func (in *Ingestor) ingestTrade(e model.Event) int {
	if e.Trade == nil {
		return 0
	}
	side := sellSide
	if e.Trade.Side == model.TradeSideBuy {
		side = buySide
	}
	accepted := 0
	if in.store.Write(e.InstrumentID, FieldTradePrice, e.EventTime, e.Trade.Price) {
		accepted++
	}
	if in.store.Write(e.InstrumentID, FieldTradeQuantity, e.EventTime, e.Trade.Quantity) {
		accepted++
	}
	if in.store.Write(e.InstrumentID, FieldTradeSide, e.EventTime, side) {
		accepted++
	}
	return accepted
}

func (in *Ingestor) ingestTick(e model.Event) int {
	if e.Tick == nil {
		return 0
	}
	return in.writeQuote(e.InstrumentID, e.EventTime, e.Tick.BidPrice, e.Tick.BidQuantity, e.Tick.AskPrice, e.Tick.AskQuantity)
}

// ingestBook derives a top-of-book quote from a depth update (best bid = highest bid level,
// best ask = lowest ask level) and writes it through the same bid/ask raw fields a Tick
// would, since spec §3's RawFieldNames defines no separate book-depth fields for feature
// inputs to reference. An update with an empty side contributes no sample for that side.
func (in *Ingestor) ingestBook(e model.Event) int {
	if e.Book == nil {
		return 0
	}
	accepted := 0
	if best, ok := bestBid(e.Book.Bids); ok {
		if in.store.Write(e.InstrumentID, FieldBidPrice, e.EventTime, best.Price) {
			accepted++
		}
		if in.store.Write(e.InstrumentID, FieldBidQuantity, e.EventTime, best.Quantity) {
			accepted++
		}
	}
	if best, ok := bestAsk(e.Book.Asks); ok {
		if in.store.Write(e.InstrumentID, FieldAskPrice, e.EventTime, best.Price) {
			accepted++
		}
		if in.store.Write(e.InstrumentID, FieldAskQuantity, e.EventTime, best.Quantity) {
			accepted++
		}
	}
	return accepted
}

func (in *Ingestor) writeQuote(instrumentID string, eventTime time.Time, bidPrice, bidQty, askPrice, askQty decimal.Decimal) int {
	accepted := 0
	if in.store.Write(instrumentID, FieldBidPrice, eventTime, bidPrice) {
		accepted++
	}
	if in.store.Write(instrumentID, FieldBidQuantity, eventTime, bidQty) {
		accepted++
	}
	if in.store.Write(instrumentID, FieldAskPrice, eventTime, askPrice) {
		accepted++
	}
	if in.store.Write(instrumentID, FieldAskQuantity, eventTime, askQty) {
		accepted++
	}
	return accepted
}

func bestBid(levels []model.PriceLevel) (model.PriceLevel, bool) {
	if len(levels) == 0 {
		return model.PriceLevel{}, false
	}
	best := levels[0]
	for _, lvl := range levels[1:] {
		if lvl.Price.GreaterThan(best.Price) {
			best = lvl
		}
	}
	return best, true
}

func bestAsk(levels []model.PriceLevel) (model.PriceLevel, bool) {
	if len(levels) == 0 {
		return model.PriceLevel{}, false
	}
	best := levels[0]
	for _, lvl := range levels[1:] {
		if lvl.Price.LessThan(best.Price) {
			best = lvl
		}
	}
	return best, true
}
