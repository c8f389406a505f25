package model

import "testing"

func TestInstrumentValidate(t *testing.T) {
	base, quote := "BTC", "USDT"
	tests := []struct {
		name    string
		inst    Instrument
		wantErr bool
	}{
		{
			name: "valid spot",
			inst: Instrument{ID: "i1", Kind: InstrumentKindSpot, BaseAsset: base, QuoteAsset: quote},
		},
		{
			name:    "missing id",
			inst:    Instrument{Kind: InstrumentKindSpot, BaseAsset: base, QuoteAsset: quote},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			inst:    Instrument{ID: "i2", Kind: "bogus", BaseAsset: base, QuoteAsset: quote},
			wantErr: true,
		},
		{
			name:    "option without strike",
			inst:    Instrument{ID: "i3", Kind: InstrumentKindOption, BaseAsset: base, QuoteAsset: quote, OptionKind: OptionKindCall},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.inst.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSelectorMatches(t *testing.T) {
	base := "BTC"
	sel := Selector{BaseAsset: &base}
	match := Instrument{BaseAsset: "btc", QuoteAsset: "USDT"}
	if !sel.Matches(match) {
		t.Error("expected case-insensitive base asset match")
	}
	noMatch := Instrument{BaseAsset: "ETH", QuoteAsset: "USDT"}
	if sel.Matches(noMatch) {
		t.Error("expected mismatch on base asset")
	}
}

func TestSelectorEmpty(t *testing.T) {
	if !(Selector{}).Empty() {
		t.Error("expected zero-value selector to be empty")
	}
	base := "BTC"
	if (Selector{BaseAsset: &base}).Empty() {
		t.Error("expected selector with a constraint to be non-empty")
	}
}

func TestGroupByKey(t *testing.T) {
	g := GroupBy{QuoteAsset: true}
	inst := Instrument{BaseAsset: "BTC", QuoteAsset: "USDT", Kind: InstrumentKindPerpetual, Venue: "BINANCE"}
	key := g.Key(inst)
	if key.QuoteAsset != "USDT" {
		t.Errorf("expected QuoteAsset grouped, got %q", key.QuoteAsset)
	}
	if key.BaseAsset != "" || key.Venue != "" {
		t.Error("expected ungrouped fields to remain zero-value")
	}
}
