// Package telemetry provides semantic conventions for insights pipeline observability.
package telemetry

import (
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for the insights pipeline.
// Following OpenTelemetry naming conventions: namespace.attribute_name

const (
	// AttrPipelineID identifies the pipeline a metric belongs to.
	AttrPipelineID = attribute.Key("pipeline.id")
	// AttrInstrumentID identifies the instrument (concrete or synthetic) a metric concerns.
	AttrInstrumentID = attribute.Key("instrument.id")
	// AttrFeatureID identifies the feature/output series a metric concerns.
	AttrFeatureID = attribute.Key("feature.id")
	// AttrNodeID identifies the DAG node instance that faulted or was evaluated.
	AttrNodeID = attribute.Key("node.id")
	// AttrEventType classifies the raw event kind (trade, tick, book_update).
	AttrEventType = attribute.Key("event.type")
	// AttrResult records the outcome of an operation (applied, noop, failed, rolled_back).
	AttrResult = attribute.Key("result")
	// AttrEnvironment specifies the deployment environment (dev/staging/prod) for every metric.
	AttrEnvironment = attribute.Key("environment")
	// AttrErrorType categorizes failures by canonical error family.
	AttrErrorType = attribute.Key("error.type")
	// AttrReason provides additional free-form context for errors/rejections.
	AttrReason = attribute.Key("reason")
)

// Raw event type values, mirroring model.EventKind for metric labels that predate a typed
// model.Event being available (e.g. ingress counters keyed before the event is parsed).
const (
	EventTypeTrade      = "trade"
	EventTypeTick       = "tick"
	EventTypeBookUpdate = "book_update"
)

// EventAttributes returns common attributes for ingress metrics.
func EventAttributes(environment, eventType, instrumentID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrEventType.String(eventType),
		AttrInstrumentID.String(instrumentID),
	}
}

// PipelineAttributes returns an environment + pipeline id attribute set for pipeline-level
// metrics. The scheduler's own Metrics attach only a pipeline.id attribute and do not call it.
func PipelineAttributes(environment, pipelineID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPipelineID.String(pipelineID),
	}
}

// ErrorAttributes returns attributes for error metrics.
func ErrorAttributes(environment, errorType, reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrErrorType.String(errorType),
		AttrReason.String(reason),
	}
}

// OperationResultAttributes returns attributes for operation metrics with result
// classification (e.g. applied/noop/failed/rolled_back). The migrations runner builds its
// counter's attributes inline and does not call it.
func OperationResultAttributes(environment, operation, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		attribute.String("operation", operation),
		AttrResult.String(result),
	}
}

// environmentEnvVar is the process environment variable read by Environment, matching the
// gateway's globalEnvironment convention but sourced from the process environment instead of
// a package-level setter, since this module has no central startup sequence that would call one.
const environmentEnvVar = "MELTICA_ENVIRONMENT"

// Environment returns the configured deployment environment for metric labels, defaulting to
// "development" when MELTICA_ENVIRONMENT is unset.
func Environment() string {
	if v := strings.TrimSpace(os.Getenv(environmentEnvVar)); v != "" {
		return v
	}
	return "development"
}
