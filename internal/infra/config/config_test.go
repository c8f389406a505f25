package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const minimalPipelineYAML = `
environment: DEV
database:
  dsn: "postgres://localhost/insights"
instruments:
  - id: BINANCE-SPOT-BTC-USDT
    venue: BINANCE
    instrument_type: spot
    base_asset: BTC
    quote_asset: USDT
    price_precision: 2
    quantity_precision: 6
pipeline:
  name: btc-momentum
  version: "1"
  warmup_steps: 5
  state_ttl: 3600
  min_interval: 1
  features:
    - type: range
      name: btc_close
      selector:
        base_asset: BTC
      data:
        window: 1
      inputs: [price]
      outputs: [btc_close]
      method: [last]
`

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when config file missing")
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, minimalPipelineYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Environment != EnvDev {
		t.Fatalf("expected environment normalised to dev, got %q", cfg.Environment)
	}
	if len(cfg.Instruments) != 1 {
		t.Fatalf("expected 1 instrument, got %d", len(cfg.Instruments))
	}
	if cfg.Pipeline.Name != "btc-momentum" {
		t.Fatalf("expected pipeline name to round-trip, got %q", cfg.Pipeline.Name)
	}
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	body := strings.Replace(minimalPipelineYAML, "environment: DEV", "environment: sandbox", 1)
	path := writeConfig(t, body)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for unrecognised environment")
	}
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	body := strings.Replace(minimalPipelineYAML, `dsn: "postgres://localhost/insights"`, `dsn: ""`, 1)
	path := writeConfig(t, body)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for missing database dsn")
	}
}

func TestLoadRejectsEmptyInstrumentUniverse(t *testing.T) {
	path := writeConfig(t, `
environment: dev
database:
  dsn: "postgres://localhost/insights"
pipeline:
  name: empty
  warmup_steps: 1
  state_ttl: 60
  min_interval: 1
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for empty instrument universe")
	}
}

func TestBuildRegistryResolvesInstrumentsAndSynthetics(t *testing.T) {
	path := writeConfig(t, `
environment: dev
database:
  dsn: "postgres://localhost/insights"
instruments:
  - id: BINANCE-SPOT-BTC-USDT
    venue: BINANCE
    instrument_type: spot
    base_asset: BTC
    quote_asset: USDT
    price_precision: 2
    quantity_precision: 6
  - id: KRAKEN-SPOT-BTC-USDT
    venue: KRAKEN
    instrument_type: spot
    base_asset: BTC
    quote_asset: USDT
    price_precision: 2
    quantity_precision: 6
synthetic_instruments:
  - selector:
      base_asset: BTC
    group_by: [base_asset, quote_asset]
pipeline:
  name: btc-index
  warmup_steps: 1
  state_ttl: 60
  min_interval: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	all := reg.All()
	if len(all) != 3 {
		t.Fatalf("expected 2 concrete + 1 synthetic instrument, got %d", len(all))
	}
}

func TestDebugJSONRoundTripsPipelineName(t *testing.T) {
	path := writeConfig(t, minimalPipelineYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	data, err := cfg.DebugJSON()
	if err != nil {
		t.Fatalf("debug json: %v", err)
	}
	if !strings.Contains(string(data), "btc-momentum") {
		t.Fatalf("expected pipeline name in debug json, got %s", data)
	}
}
