// Package eventsource decodes newline-delimited JSON event logs into model.Event values for
// the pipeline's raw ingress queue. Venue-specific ingestion adapters are out of scope for
// this module (spec §1); NDJSON replay is the external interface contract the core's event
// queue is fed through, e.g. for backtests or for piping a venue adapter's own output in.
package eventsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/coachpo/meltica/internal/domain/model"
)

type wireTrade struct {
	TradeID  string `json:"trade_id"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type wireTick struct {
	TickID      string `json:"tick_id"`
	BidPrice    string `json:"bid_price"`
	BidQuantity string `json:"bid_quantity"`
	AskPrice    string `json:"ask_price"`
	AskQuantity string `json:"ask_quantity"`
}

type wirePriceLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type wireBook struct {
	UpdateID string           `json:"update_id"`
	Bids     []wirePriceLevel `json:"bids"`
	Asks     []wirePriceLevel `json:"asks"`
}

type wireEvent struct {
	Kind         string     `json:"kind"`
	EventTime    time.Time  `json:"event_time"`
	InstrumentID string     `json:"instrument_id"`
	Trade        *wireTrade `json:"trade,omitempty"`
	Tick         *wireTick  `json:"tick,omitempty"`
	Book         *wireBook  `json:"book,omitempty"`
}

// Reader decodes one model.Event per non-empty NDJSON line.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for line-at-a-time event decoding.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Stream decodes events from the underlying reader and pushes them to the returned channel
// until EOF, a read error, or ctx cancellation. Both channels are closed when decoding ends.
// Decode errors are sent on errs and do not stop the stream; the offending line is skipped.
func (r *Reader) Stream(ctx context.Context) (<-chan model.Event, <-chan error) {
	events := make(chan model.Event)
	errsCh := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errsCh)
		for r.scanner.Scan() {
			line := r.scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			evt, err := decodeLine(line)
			if err != nil {
				select {
				case errsCh <- err:
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
		if err := r.scanner.Err(); err != nil {
			select {
			case errsCh <- fmt.Errorf("scan event log: %w", err):
			default:
			}
		}
	}()

	return events, errsCh
}

func decodeLine(line []byte) (model.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return model.Event{}, fmt.Errorf("decode event: %w", err)
	}
	evt := model.Event{
		Kind:         model.EventKind(w.Kind),
		EventTime:    w.EventTime,
		InstrumentID: w.InstrumentID,
	}
	switch evt.Kind {
	case model.EventKindTrade:
		if w.Trade == nil {
			return model.Event{}, fmt.Errorf("trade event missing trade payload")
		}
		price, err := decimal.NewFromString(w.Trade.Price)
		if err != nil {
			return model.Event{}, fmt.Errorf("trade price: %w", err)
		}
		qty, err := decimal.NewFromString(w.Trade.Quantity)
		if err != nil {
			return model.Event{}, fmt.Errorf("trade quantity: %w", err)
		}
		evt.Trade = &model.Trade{
			TradeID:  w.Trade.TradeID,
			Side:     model.TradeSide(w.Trade.Side),
			Price:    price,
			Quantity: qty,
		}
	case model.EventKindTick:
		if w.Tick == nil {
			return model.Event{}, fmt.Errorf("tick event missing tick payload")
		}
		tick, err := decodeTick(*w.Tick)
		if err != nil {
			return model.Event{}, err
		}
		evt.Tick = tick
	case model.EventKindBookUpdate:
		if w.Book == nil {
			return model.Event{}, fmt.Errorf("book_update event missing book payload")
		}
		book, err := decodeBook(*w.Book)
		if err != nil {
			return model.Event{}, err
		}
		evt.Book = book
	default:
		return model.Event{}, fmt.Errorf("unknown event kind: %q", w.Kind)
	}
	return evt, nil
}

func decodeTick(w wireTick) (*model.Tick, error) {
	bidPrice, err := decimal.NewFromString(w.BidPrice)
	if err != nil {
		return nil, fmt.Errorf("bid price: %w", err)
	}
	bidQty, err := decimal.NewFromString(w.BidQuantity)
	if err != nil {
		return nil, fmt.Errorf("bid quantity: %w", err)
	}
	askPrice, err := decimal.NewFromString(w.AskPrice)
	if err != nil {
		return nil, fmt.Errorf("ask price: %w", err)
	}
	askQty, err := decimal.NewFromString(w.AskQuantity)
	if err != nil {
		return nil, fmt.Errorf("ask quantity: %w", err)
	}
	return &model.Tick{
		TickID:      w.TickID,
		BidPrice:    bidPrice,
		BidQuantity: bidQty,
		AskPrice:    askPrice,
		AskQuantity: askQty,
	}, nil
}

func decodeBook(w wireBook) (*model.BookUpdate, error) {
	bids, err := decodeLevels(w.Bids)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	asks, err := decodeLevels(w.Asks)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	return &model.BookUpdate{UpdateID: w.UpdateID, Bids: bids, Asks: asks}, nil
}

func decodeLevels(levels []wirePriceLevel) ([]model.PriceLevel, error) {
	out := make([]model.PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(l.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}
