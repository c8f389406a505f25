package instrument

import (
	"testing"

	"github.com/coachpo/meltica/internal/domain/model"
)

func concreteInstruments() []model.Instrument {
	return []model.Instrument{
		{ID: "binance-btc-usdt-perp", Venue: "BINANCE", Kind: model.InstrumentKindPerpetual, BaseAsset: "BTC", QuoteAsset: "USDT", Status: model.InstrumentStatusTrading},
		{ID: "okx-btc-usdt-perp", Venue: "OKX", Kind: model.InstrumentKindPerpetual, BaseAsset: "BTC", QuoteAsset: "USDT", Status: model.InstrumentStatusTrading},
		{ID: "binance-eth-usdt-spot", Venue: "BINANCE", Kind: model.InstrumentKindSpot, BaseAsset: "ETH", QuoteAsset: "USDT", Status: model.InstrumentStatusTrading},
	}
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	dup := append(concreteInstruments(), concreteInstruments()[0])
	if _, err := Build(dup, nil); err == nil {
		t.Fatal("expected error for duplicate instrument id")
	}
}

func TestResolveRejectsEmptySelector(t *testing.T) {
	reg, err := Build(concreteInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := reg.Resolve(model.Selector{}); err == nil {
		t.Fatal("expected error for empty selector")
	}
}

func TestSyntheticMaterializationIsStableAndGrouped(t *testing.T) {
	quote := "USDT"
	spec := SyntheticSpec{
		Selector: model.Selector{QuoteAsset: &quote},
		GroupBy:  model.GroupBy{QuoteAsset: true},
	}
	reg1, err := Build(concreteInstruments(), []SyntheticSpec{spec})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	reg2, err := Build(concreteInstruments(), []SyntheticSpec{spec})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	synIDs1, err := reg1.Resolve(model.Selector{Synthetic: boolPtr(true)})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	synIDs2, err := reg2.Resolve(model.Selector{Synthetic: boolPtr(true)})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(synIDs1) != 1 || len(synIDs2) != 1 {
		t.Fatalf("expected exactly one synthetic grouping by quote asset, got %d and %d", len(synIDs1), len(synIDs2))
	}
	if synIDs1[0] != synIDs2[0] {
		t.Errorf("expected stable synthetic id across builds, got %q vs %q", synIDs1[0], synIDs2[0])
	}

	members, err := reg1.Members(synIDs1[0])
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected all 3 USDT instruments grouped together, got %d", len(members))
	}

	synInst, err := reg1.Get(synIDs1[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if synInst.Venue != indexVenue {
		t.Errorf("expected venue=Index when venue not in group_by, got %q", synInst.Venue)
	}
}

func TestMembersRejectsConcreteInstrument(t *testing.T) {
	reg, err := Build(concreteInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := reg.Members("binance-btc-usdt-perp"); err == nil {
		t.Fatal("expected error when requesting members of a concrete instrument")
	}
}

func TestGetUnknownInstrument(t *testing.T) {
	reg, err := Build(concreteInstruments(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := reg.Get("does-not-exist"); err == nil {
		t.Fatal("expected UnknownInstrument error")
	}
}

func boolPtr(b bool) *bool { return &b }
