// Package config loads the insights pipeline's YAML application configuration: the
// instrument universe, the pipeline definition, telemetry settings, and the Postgres DSN.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/coachpo/meltica/internal/domain/instrument"
	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/errs"
)

// Environment identifies the deployment tier a configuration targets.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// MetaConfig captures descriptive metadata for the configuration bundle.
type MetaConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// DatabaseConfig configures the Postgres connection the insight sink writer and the
// migrations runner both use.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// TelemetryConfig configures OTLP metric export, mirrored onto lib/telemetry.Settings at
// startup.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlpEndpoint"`
	ServiceName  string `yaml:"service_name" json:"serviceName"`
}

// selectorConfig mirrors model.Selector with plain string pointers so it decodes directly
// from YAML before being normalized, matching feature.Config's own selector encoding.
type selectorConfig struct {
	BaseAsset      *string `yaml:"base_asset,omitempty" json:"baseAsset,omitempty"`
	QuoteAsset     *string `yaml:"quote_asset,omitempty" json:"quoteAsset,omitempty"`
	Venue          *string `yaml:"venue,omitempty" json:"venue,omitempty"`
	InstrumentType *string `yaml:"instrument_type,omitempty" json:"instrumentType,omitempty"`
	Synthetic      *bool   `yaml:"synthetic,omitempty" json:"synthetic,omitempty"`
}

func (s selectorConfig) toSelector() model.Selector {
	sel := model.Selector{
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		Venue:      s.Venue,
		Synthetic:  s.Synthetic,
	}
	if s.InstrumentType != nil {
		kind := model.InstrumentKind(*s.InstrumentType)
		sel.InstrumentKind = &kind
	}
	return sel
}

// groupByConfig decodes a group_by mask from a list of attribute names, e.g.
// `group_by: [base_asset, quote_asset]`, matching feature.Config's own encoding.
type groupByConfig []string

func (g groupByConfig) toGroupBy() model.GroupBy {
	mask := model.GroupBy{}
	for _, attr := range g {
		switch strings.TrimSpace(attr) {
		case "base_asset":
			mask.BaseAsset = true
		case "quote_asset":
			mask.QuoteAsset = true
		case "instrument_type":
			mask.InstrumentKind = true
		case "venue":
			mask.Venue = true
		}
	}
	return mask
}

// InstrumentConfig declares one concrete, tradable instrument in the universe a pipeline
// may reference, per spec §4.1.
type InstrumentConfig struct {
	ID                string  `yaml:"id" json:"id"`
	Venue             string  `yaml:"venue" json:"venue"`
	InstrumentType    string  `yaml:"instrument_type" json:"instrumentType"`
	BaseAsset         string  `yaml:"base_asset" json:"baseAsset"`
	QuoteAsset        string  `yaml:"quote_asset" json:"quoteAsset"`
	MarginAsset       string  `yaml:"margin_asset,omitempty" json:"marginAsset,omitempty"`
	OptionKind        string  `yaml:"option_kind,omitempty" json:"optionKind,omitempty"`
	Strike            *string `yaml:"strike,omitempty" json:"strike,omitempty"`
	ContractSize      string  `yaml:"contract_size,omitempty" json:"contractSize,omitempty"`
	PricePrecision    int     `yaml:"price_precision" json:"pricePrecision"`
	QuantityPrecision int     `yaml:"quantity_precision" json:"quantityPrecision"`
	LotSize           string  `yaml:"lot_size,omitempty" json:"lotSize,omitempty"`
	TickSize          string  `yaml:"tick_size,omitempty" json:"tickSize,omitempty"`
	Status            string  `yaml:"status,omitempty" json:"status,omitempty"`
}

// SyntheticConfig declares one synthetic-instrument family materialized at startup by
// grouping concrete instruments matching Selector under GroupBy, per spec §4.1.
type SyntheticConfig struct {
	Selector selectorConfig `yaml:"selector" json:"selector"`
	GroupBy  groupByConfig  `yaml:"group_by" json:"groupBy"`
}

// AppConfig is the unified insights pipeline configuration sourced from YAML: the
// instrument universe, the feature DAG definition, and the ambient infra settings.
type AppConfig struct {
	Environment Environment            `yaml:"environment" json:"environment"`
	Meta        MetaConfig             `yaml:"meta" json:"meta"`
	Database    DatabaseConfig         `yaml:"database" json:"database"`
	Telemetry   TelemetryConfig        `yaml:"telemetry" json:"telemetry"`
	Instruments []InstrumentConfig     `yaml:"instruments" json:"instruments"`
	Synthetics  []SyntheticConfig      `yaml:"synthetic_instruments,omitempty" json:"syntheticInstruments,omitempty"`
	Pipeline    feature.PipelineConfig `yaml:"pipeline" json:"pipeline"`
}

// Load reads and validates an AppConfig from the YAML file at path.
func Load(path string) (AppConfig, error) {
	op := "config.load"
	clean := filepath.Clean(strings.TrimSpace(path))
	data, err := os.ReadFile(clean) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return AppConfig{}, errs.ConfigInvalid(op, fmt.Sprintf("read config %s: %v", clean, err))
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, errs.ConfigInvalid(op, fmt.Sprintf("unmarshal config: %v", err))
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	c.Meta.Name = strings.TrimSpace(c.Meta.Name)
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
}

// Validate enforces configuration-wide invariants beyond what feature.PipelineConfig.Validate
// already covers: a recognised environment, a non-empty instrument universe, and a database
// DSN to persist insights to.
func (c AppConfig) Validate() error {
	op := "config.validate"
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return errs.ConfigInvalid(op, "environment must be one of dev, staging, prod")
	}
	if len(c.Instruments) == 0 {
		return errs.ConfigInvalid(op, "at least one instrument is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errs.ConfigInvalid(op, "database dsn is required")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	return nil
}

// BuildRegistry constructs the instrument.Registry for this configuration: concrete
// instruments as declared, plus any synthetic families materialized on top of them.
func (c AppConfig) BuildRegistry() (*instrument.Registry, error) {
	concrete := make([]model.Instrument, 0, len(c.Instruments))
	for _, ic := range c.Instruments {
		inst, err := ic.toInstrument()
		if err != nil {
			return nil, err
		}
		concrete = append(concrete, inst)
	}

	synthetics := make([]instrument.SyntheticSpec, 0, len(c.Synthetics))
	for _, sc := range c.Synthetics {
		synthetics = append(synthetics, instrument.SyntheticSpec{
			Selector: sc.Selector.toSelector(),
			GroupBy:  sc.GroupBy.toGroupBy(),
		})
	}
	return instrument.Build(concrete, synthetics)
}

func (ic InstrumentConfig) toInstrument() (model.Instrument, error) {
	op := "config.instrument:" + ic.ID
	inst := model.Instrument{
		ID:                ic.ID,
		Venue:             ic.Venue,
		Kind:              model.InstrumentKind(ic.InstrumentType),
		BaseAsset:         ic.BaseAsset,
		QuoteAsset:        ic.QuoteAsset,
		MarginAsset:       ic.MarginAsset,
		OptionKind:        model.OptionKind(ic.OptionKind),
		PricePrecision:    ic.PricePrecision,
		QuantityPrecision: ic.QuantityPrecision,
		Status:            model.InstrumentStatus(ic.Status),
	}
	if inst.Status == "" {
		inst.Status = model.InstrumentStatusTrading
	}

	decOrZero := func(s string) (decimal.Decimal, error) {
		if strings.TrimSpace(s) == "" {
			return decimal.Zero, nil
		}
		return parseDecimal(op, s)
	}
	var err error
	if inst.ContractSize, err = decOrZero(ic.ContractSize); err != nil {
		return model.Instrument{}, err
	}
	if inst.LotSize, err = decOrZero(ic.LotSize); err != nil {
		return model.Instrument{}, err
	}
	if inst.TickSize, err = decOrZero(ic.TickSize); err != nil {
		return model.Instrument{}, err
	}
	if ic.Strike != nil {
		strike, err := parseDecimal(op, *ic.Strike)
		if err != nil {
			return model.Instrument{}, err
		}
		inst.Strike = &strike
	}
	return inst, nil
}

func parseDecimal(op, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, errs.ConfigInvalid(op, fmt.Sprintf("invalid decimal %q: %v", s, err))
	}
	return d, nil
}

// DebugJSON renders the configuration as indented JSON for operator diagnostics (e.g. a
// `--print-config` flag), using the same JSON codec the eventsource package uses to decode
// NDJSON event logs.
func (c AppConfig) DebugJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
