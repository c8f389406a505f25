package nodeexec

import (
	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/shopspring/decimal"
)

// TradeSample is one trade observation zipped from the State Store's aligned
// trade_price/trade_quantity/trade_side raw series for a single instrument.
type TradeSample struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Side     model.TradeSide
}

// OHLCVResult holds every output OHLCV emits, per §4.5. Price-bearing fields stay decimal
// throughout, matching §3's "decimal for raw price/quantity where precision matters".
type OHLCVResult struct {
	Open, High, Low, Close                    decimal.Decimal
	TypicalPrice                              decimal.Decimal
	VWAP                                      decimal.Decimal
	Volume, BuyVolume, SellVolume             decimal.Decimal
	NotionalVolume                            decimal.Decimal
	BuyNotionalVolume, SellNotionalVolume     decimal.Decimal
	TradeCount, BuyTradeCount, SellTradeCount int
}

// OHLCV aggregates trades in a window into open/high/low/close/volume/notional statistics,
// per §4.5. An empty trade set is a numerical anomaly; the caller applies fill_strategy
// per output field.
func OHLCV(trades []TradeSample) (OHLCVResult, bool) {
	if len(trades) == 0 {
		return OHLCVResult{}, false
	}

	r := OHLCVResult{
		Open:  trades[0].Price,
		High:  trades[0].Price,
		Low:   trades[0].Price,
		Close: trades[len(trades)-1].Price,
	}

	notional := decimal.Zero
	volume := decimal.Zero
	for _, t := range trades {
		if t.Price.GreaterThan(r.High) {
			r.High = t.Price
		}
		if t.Price.LessThan(r.Low) {
			r.Low = t.Price
		}
		tradeNotional := t.Price.Mul(t.Quantity)
		notional = notional.Add(tradeNotional)
		volume = volume.Add(t.Quantity)

		r.TradeCount++
		switch t.Side {
		case model.TradeSideBuy:
			r.BuyVolume = r.BuyVolume.Add(t.Quantity)
			r.BuyNotionalVolume = r.BuyNotionalVolume.Add(tradeNotional)
			r.BuyTradeCount++
		case model.TradeSideSell:
			r.SellVolume = r.SellVolume.Add(t.Quantity)
			r.SellNotionalVolume = r.SellNotionalVolume.Add(tradeNotional)
			r.SellTradeCount++
		}
	}

	r.Volume = volume
	r.NotionalVolume = notional
	r.TypicalPrice = r.High.Add(r.Low).Add(r.Close).Div(decimal.NewFromInt(3))
	if volume.IsPositive() {
		r.VWAP = notional.Div(volume)
	} else {
		r.VWAP = r.Close
	}
	return r, true
}
