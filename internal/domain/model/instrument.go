// Package model defines the canonical value types shared across the insights pipeline:
// instruments, raw market events, and the insights the feature pipeline emits.
package model

import (
	"strings"

	"github.com/coachpo/meltica/internal/errs"
	"github.com/shopspring/decimal"
)

// InstrumentKind identifies the market structure for an instrument.
type InstrumentKind string

const (
	// InstrumentKindSpot represents spot markets.
	InstrumentKindSpot InstrumentKind = "spot"
	// InstrumentKindPerpetual represents perpetual swap markets.
	InstrumentKindPerpetual InstrumentKind = "perpetual"
	// InstrumentKindFuture represents dated futures markets.
	InstrumentKindFuture InstrumentKind = "future"
	// InstrumentKindOption represents options markets.
	InstrumentKindOption InstrumentKind = "option"
	// InstrumentKindIndex represents a synthetic index/aggregate instrument.
	InstrumentKindIndex InstrumentKind = "index"
)

// Valid reports whether the instrument kind is recognised.
func (k InstrumentKind) Valid() bool {
	switch k {
	case InstrumentKindSpot, InstrumentKindPerpetual, InstrumentKindFuture, InstrumentKindOption, InstrumentKindIndex:
		return true
	default:
		return false
	}
}

// OptionKind identifies option style for options instruments.
type OptionKind string

const (
	// OptionKindCall represents call options.
	OptionKindCall OptionKind = "call"
	// OptionKindPut represents put options.
	OptionKindPut OptionKind = "put"
)

// InstrumentStatus captures the trading lifecycle state of an instrument.
type InstrumentStatus string

const (
	// InstrumentStatusTrading marks an instrument open for trading.
	InstrumentStatusTrading InstrumentStatus = "trading"
	// InstrumentStatusHalted marks an instrument temporarily suspended.
	InstrumentStatusHalted InstrumentStatus = "halted"
	// InstrumentStatusSettled marks an instrument that has stopped trading permanently.
	InstrumentStatusSettled InstrumentStatus = "settled"
)

// Instrument describes a tradable contract on a venue, or a materialized synthetic
// aggregate over a set of concrete instruments.
type Instrument struct {
	ID                string
	Venue             string
	Kind              InstrumentKind
	BaseAsset         string
	QuoteAsset        string
	MarginAsset       string
	Strike            *decimal.Decimal
	Maturity          *string
	OptionKind        OptionKind
	ContractSize      decimal.Decimal
	PricePrecision    int
	QuantityPrecision int
	LotSize           decimal.Decimal
	TickSize          decimal.Decimal
	Status            InstrumentStatus
	Synthetic         bool
	// Members lists the constituent concrete instrument ids for a synthetic instrument.
	// Empty for concrete instruments.
	Members []string
}

// Validate checks the instrument for the invariants the registry relies on at build time.
func (i Instrument) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errs.ConfigInvalid("instrument.validate", "instrument id required")
	}
	if !i.Kind.Valid() {
		return errs.ConfigInvalid("instrument.validate", "unknown instrument kind: "+string(i.Kind))
	}
	if strings.TrimSpace(i.BaseAsset) == "" {
		return errs.ConfigInvalid("instrument.validate", "instrument base asset required")
	}
	if strings.TrimSpace(i.QuoteAsset) == "" {
		return errs.ConfigInvalid("instrument.validate", "instrument quote asset required")
	}
	if i.Kind == InstrumentKindOption {
		if i.OptionKind != OptionKindCall && i.OptionKind != OptionKindPut {
			return errs.ConfigInvalid("instrument.validate", "option instrument requires call/put option kind")
		}
		if i.Strike == nil {
			return errs.ConfigInvalid("instrument.validate", "option instrument requires strike")
		}
	}
	return nil
}

// Selector filters instruments by a set of optional attribute matches. A nil/empty
// field is treated as "don't care" for that attribute.
type Selector struct {
	BaseAsset      *string
	QuoteAsset     *string
	Venue          *string
	InstrumentKind *InstrumentKind
	Synthetic      *bool
}

// Empty reports whether the selector constrains nothing, which is invalid per spec (§4.2
// "selector non-empty").
func (s Selector) Empty() bool {
	return s.BaseAsset == nil && s.QuoteAsset == nil && s.Venue == nil &&
		s.InstrumentKind == nil && s.Synthetic == nil
}

// Matches reports whether the instrument satisfies every constrained field of the selector.
func (s Selector) Matches(inst Instrument) bool {
	if s.BaseAsset != nil && !strings.EqualFold(*s.BaseAsset, inst.BaseAsset) {
		return false
	}
	if s.QuoteAsset != nil && !strings.EqualFold(*s.QuoteAsset, inst.QuoteAsset) {
		return false
	}
	if s.Venue != nil && !strings.EqualFold(*s.Venue, inst.Venue) {
		return false
	}
	if s.InstrumentKind != nil && *s.InstrumentKind != inst.Kind {
		return false
	}
	if s.Synthetic != nil && *s.Synthetic != inst.Synthetic {
		return false
	}
	return true
}

// GroupBy selects which instrument attributes define a synthetic instrument's group key.
type GroupBy struct {
	BaseAsset      bool
	QuoteAsset     bool
	InstrumentKind bool
	Venue          bool
}

// Key derives the group-key tuple for an instrument under this mask. Two instruments with
// equal keys belong to the same synthetic group.
func (g GroupBy) Key(inst Instrument) GroupKey {
	key := GroupKey{}
	if g.BaseAsset {
		key.BaseAsset = inst.BaseAsset
	}
	if g.QuoteAsset {
		key.QuoteAsset = inst.QuoteAsset
	}
	if g.InstrumentKind {
		key.InstrumentKind = inst.Kind
	}
	if g.Venue {
		key.Venue = inst.Venue
	}
	return key
}

// GroupKey is the materialized tuple of grouped attribute values for one synthetic instrument
// or one grouped feature-node instance.
type GroupKey struct {
	BaseAsset      string
	QuoteAsset     string
	InstrumentKind InstrumentKind
	Venue          string
}

// String renders a stable, human-readable representation used for hashing and diagnostics.
func (k GroupKey) String() string {
	return strings.Join([]string{k.BaseAsset, k.QuoteAsset, string(k.InstrumentKind), k.Venue}, "|")
}
