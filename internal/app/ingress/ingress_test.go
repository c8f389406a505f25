package ingress

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/infra/statestore"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func at(seconds int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, seconds, 0, time.UTC)
}

func TestIngestTrade(t *testing.T) {
	store := statestore.New(time.Hour)
	in := New(store)

	n := in.Ingest(model.Event{
		Kind:         model.EventKindTrade,
		EventTime:    at(1),
		InstrumentID: "btc",
		Trade:        &model.Trade{TradeID: "t1", Side: model.TradeSideBuy, Price: dec(100), Quantity: dec(2)},
	})
	if n != 3 {
		t.Fatalf("accepted = %d, want 3", n)
	}

	price, ok := store.Latest("btc", FieldTradePrice, at(1))
	if !ok || !price.Value.Equal(dec(100)) {
		t.Fatalf("trade_price = %+v, ok=%v", price, ok)
	}
	side, ok := store.Latest("btc", FieldTradeSide, at(1))
	if !ok || !side.Value.Equal(buySide) {
		t.Fatalf("trade_side = %+v, ok=%v", side, ok)
	}
}

func TestIngestTradeSellSide(t *testing.T) {
	store := statestore.New(time.Hour)
	in := New(store)
	in.Ingest(model.Event{
		Kind: model.EventKindTrade, EventTime: at(1), InstrumentID: "btc",
		Trade: &model.Trade{Side: model.TradeSideSell, Price: dec(99), Quantity: dec(1)},
	})
	side, ok := store.Latest("btc", FieldTradeSide, at(1))
	if !ok || !side.Value.Equal(sellSide) {
		t.Fatalf("trade_side = %+v, ok=%v", side, ok)
	}
}

func TestIngestTick(t *testing.T) {
	store := statestore.New(time.Hour)
	in := New(store)
	n := in.Ingest(model.Event{
		Kind: model.EventKindTick, EventTime: at(1), InstrumentID: "btc",
		Tick: &model.Tick{BidPrice: dec(99), BidQuantity: dec(1), AskPrice: dec(101), AskQuantity: dec(2)},
	})
	if n != 4 {
		t.Fatalf("accepted = %d, want 4", n)
	}
	ask, ok := store.Latest("btc", FieldAskPrice, at(1))
	if !ok || !ask.Value.Equal(dec(101)) {
		t.Fatalf("ask_price = %+v, ok=%v", ask, ok)
	}
}

func TestIngestBookUpdateDerivesTopOfBook(t *testing.T) {
	store := statestore.New(time.Hour)
	in := New(store)
	n := in.Ingest(model.Event{
		Kind: model.EventKindBookUpdate, EventTime: at(1), InstrumentID: "btc",
		Book: &model.BookUpdate{
			Bids: []model.PriceLevel{{Price: dec(98), Quantity: dec(1)}, {Price: dec(99), Quantity: dec(2)}},
			Asks: []model.PriceLevel{{Price: dec(102), Quantity: dec(1)}, {Price: dec(101), Quantity: dec(3)}},
		},
	})
	if n != 4 {
		t.Fatalf("accepted = %d, want 4", n)
	}
	bid, _ := store.Latest("btc", FieldBidPrice, at(1))
	if !bid.Value.Equal(dec(99)) {
		t.Errorf("best bid = %v, want 99 (highest)", bid.Value)
	}
	ask, _ := store.Latest("btc", FieldAskPrice, at(1))
	if !ask.Value.Equal(dec(101)) {
		t.Errorf("best ask = %v, want 101 (lowest)", ask.Value)
	}
}

func TestIngestOutOfOrderDropped(t *testing.T) {
	store := statestore.New(time.Hour)
	in := New(store)
	in.Ingest(model.Event{Kind: model.EventKindTrade, EventTime: at(10), InstrumentID: "btc",
		Trade: &model.Trade{Side: model.TradeSideBuy, Price: dec(100), Quantity: dec(1)}})
	n := in.Ingest(model.Event{Kind: model.EventKindTrade, EventTime: at(5), InstrumentID: "btc",
		Trade: &model.Trade{Side: model.TradeSideBuy, Price: dec(50), Quantity: dec(1)}})
	if n != 0 {
		t.Fatalf("accepted = %d, want 0 for out-of-order event", n)
	}
	if got := store.DroppedOutOfOrder("btc", FieldTradePrice); got != 1 {
		t.Errorf("dropped counter = %d, want 1", got)
	}
}

func TestIngestUnknownKindNoop(t *testing.T) {
	store := statestore.New(time.Hour)
	in := New(store)
	if n := in.Ingest(model.Event{Kind: "unknown", EventTime: at(1), InstrumentID: "btc"}); n != 0 {
		t.Errorf("accepted = %d, want 0", n)
	}
}
