package telemetry

import (
	"os"
	"testing"
)

func TestEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv(environmentEnvVar, "")
	if got := Environment(); got != "development" {
		t.Fatalf("expected default environment 'development', got %q", got)
	}
}

func TestEnvironmentReadsProcessEnv(t *testing.T) {
	t.Setenv(environmentEnvVar, "staging")
	if got := Environment(); got != "staging" {
		t.Fatalf("expected 'staging', got %q", got)
	}
	os.Unsetenv(environmentEnvVar)
}

func TestPipelineAttributesIncludesPipelineID(t *testing.T) {
	attrs := PipelineAttributes("development", "pipeline-1")
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[1].Value.AsString() != "pipeline-1" {
		t.Fatalf("expected pipeline id attribute, got %v", attrs[1])
	}
}
