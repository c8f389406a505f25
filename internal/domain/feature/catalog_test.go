package feature

import (
	"testing"

	"github.com/coachpo/meltica/internal/domain/instrument"
	"github.com/coachpo/meltica/internal/domain/model"
)

func testInstruments() []model.Instrument {
	return []model.Instrument{
		{ID: "binance-btc-usdt-perp", Venue: "BINANCE", Kind: model.InstrumentKindPerpetual, BaseAsset: "BTC", QuoteAsset: "USDT", Status: model.InstrumentStatusTrading},
		{ID: "okx-btc-usdt-perp", Venue: "OKX", Kind: model.InstrumentKindPerpetual, BaseAsset: "BTC", QuoteAsset: "USDT", Status: model.InstrumentStatusTrading},
	}
}

func quotePtr(q string) *string { return &q }

func TestResolverPlanLinksProducerToConsumer(t *testing.T) {
	reg, err := instrument.Build(testInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	pc := PipelineConfig{
		Name:               "insights",
		MinIntervalSeconds: 5,
		StateTTLSeconds:    600,
		Features: []Config{
			{
				Name:     "sma_20",
				Kind:     KindSMA,
				Selector: selectorYAML{QuoteAsset: quotePtr("USDT")},
				Inputs:   []string{"trade_price"},
				Outputs:  []string{"sma_20"},
				Data:     DataSpec{Kind: DataKindInterval, IntervalCount: 20},
				Periods:  20,
			},
			{
				Name:     "lag_1",
				Kind:     KindLag,
				Selector: selectorYAML{QuoteAsset: quotePtr("USDT")},
				Inputs:   []string{"sma_20"},
				Outputs:  []string{"lag_1"},
				Lag:      []uint{1},
				Data:     DataSpec{Kind: DataKindInterval, IntervalCount: 2},
			},
		},
	}
	r, err := NewResolver(reg, pc)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	dag, err := r.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(dag.Nodes) != 4 {
		t.Fatalf("expected 4 nodes (2 instruments x 2 configs), got %d", len(dag.Nodes))
	}
	if len(dag.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(dag.Levels))
	}
	if len(dag.Levels[0]) != 2 || len(dag.Levels[1]) != 2 {
		t.Fatalf("expected 2 nodes per level, got %v", dag.Levels)
	}

	for _, id := range dag.Levels[1] {
		n := dag.Nodes[id]
		if len(n.Inputs) != 1 || n.Inputs[0].Raw {
			t.Fatalf("expected lag node to have one non-raw input, got %+v", n.Inputs)
		}
		producer := dag.Nodes[n.Inputs[0].Producer]
		if producer.Instrument != n.Instrument {
			t.Errorf("producer instrument %q != consumer instrument %q", producer.Instrument, n.Instrument)
		}
	}
}

func TestResolverPlanRejectsForwardReference(t *testing.T) {
	reg, err := instrument.Build(testInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	pc := PipelineConfig{
		Name:               "insights",
		MinIntervalSeconds: 5,
		StateTTLSeconds:    600,
		Features: []Config{
			{
				Name:     "lag_1",
				Kind:     KindLag,
				Selector: selectorYAML{QuoteAsset: quotePtr("USDT")},
				Inputs:   []string{"sma_20"},
				Outputs:  []string{"lag_1"},
				Lag:      []uint{1},
				Data:     DataSpec{Kind: DataKindInterval, IntervalCount: 2},
			},
			{
				Name:     "sma_20",
				Kind:     KindSMA,
				Selector: selectorYAML{QuoteAsset: quotePtr("USDT")},
				Inputs:   []string{"trade_price"},
				Outputs:  []string{"sma_20"},
				Data:     DataSpec{Kind: DataKindInterval, IntervalCount: 20},
				Periods:  20,
			},
		},
	}
	r, err := NewResolver(reg, pc)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if _, err := r.Plan(); err == nil {
		t.Fatal("expected error when a node's input references a later feature's output")
	}
}

func TestResolverPlanRejectsUnresolvedInput(t *testing.T) {
	reg, err := instrument.Build(testInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	pc := PipelineConfig{
		Name:               "insights",
		MinIntervalSeconds: 5,
		StateTTLSeconds:    600,
		Features: []Config{
			{
				Name:     "sma_20",
				Kind:     KindSMA,
				Selector: selectorYAML{QuoteAsset: quotePtr("USDT")},
				Inputs:   []string{"not_a_real_input"},
				Outputs:  []string{"sma_20"},
				Data:     DataSpec{Kind: DataKindInterval, IntervalCount: 20},
				Periods:  20,
			},
		},
	}
	r, err := NewResolver(reg, pc)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if _, err := r.Plan(); err == nil {
		t.Fatal("expected error for unresolved input name")
	}
}

func TestResolverPlanTwoValuePairsSingleInstrumentsWithoutGroupBy(t *testing.T) {
	reg, err := instrument.Build(testInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	venue1, venue2 := "BINANCE", "OKX"
	pc := PipelineConfig{
		Name:               "insights",
		MinIntervalSeconds: 5,
		StateTTLSeconds:    600,
		Features: []Config{
			{
				Name:      "imbalance",
				Kind:      KindTwoValue,
				Selector:  selectorYAML{Venue: &venue1},
				Selector2: &selectorYAML{Venue: &venue2},
				Inputs:    []string{"trade_price"},
				Inputs2:   []string{"trade_price"},
				Outputs:   []string{"imbalance"},
				Method:    []string{"imbalance"},
			},
		},
	}
	r, err := NewResolver(reg, pc)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	dag, err := r.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(dag.Nodes) != 1 {
		t.Fatalf("expected exactly 1 paired node, got %d", len(dag.Nodes))
	}
	for _, n := range dag.Nodes {
		if n.Instrument != "binance-btc-usdt-perp" || n.Instrument2 != "okx-btc-usdt-perp" {
			t.Errorf("unexpected pairing: %q / %q", n.Instrument, n.Instrument2)
		}
	}
}

func TestResolverPlanTwoValueRejectsAmbiguousPairingWithoutGroupBy(t *testing.T) {
	reg, err := instrument.Build(testInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	pc := PipelineConfig{
		Name:               "insights",
		MinIntervalSeconds: 5,
		StateTTLSeconds:    600,
		Features: []Config{
			{
				Name:      "imbalance",
				Kind:      KindTwoValue,
				Selector:  selectorYAML{QuoteAsset: quotePtr("USDT")}, // matches both instruments
				Selector2: &selectorYAML{QuoteAsset: quotePtr("USDT")},
				Inputs:    []string{"trade_price"},
				Inputs2:   []string{"trade_price"},
				Outputs:   []string{"imbalance"},
				Method:    []string{"imbalance"},
			},
		},
	}
	r, err := NewResolver(reg, pc)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if _, err := r.Plan(); err == nil {
		t.Fatal("expected error when selector without group_by resolves to more than one instrument")
	}
}
