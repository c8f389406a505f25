// Package errs provides structured error types shared across the insights pipeline.
package errs

import (
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the category of failure produced by the pipeline.
type Kind string

const (
	// KindConfigInvalid marks a malformed or incomplete pipeline configuration:
	// missing fields, arity mismatches, unknown selectors, or a TTL shorter than
	// the longest window/interval a node requires.
	KindConfigInvalid Kind = "config_invalid"
	// KindPipelineCycle marks a feature graph that contains a dependency cycle.
	KindPipelineCycle Kind = "pipeline_cycle"
	// KindUnknownInstrument marks a runtime lookup against an unregistered instrument id.
	KindUnknownInstrument Kind = "unknown_instrument"
	// KindNumericNonFinite marks an intermediate computation that produced NaN/Inf.
	// Callers absorb this via fill strategy; it is not meant to abort a tick.
	KindNumericNonFinite Kind = "numeric_non_finite"
	// KindSinkBackpressure marks sink-queue saturation, surfaced only through metrics.
	KindSinkBackpressure Kind = "sink_backpressure"
	// KindShutdown marks a clean termination signal.
	KindShutdown Kind = "shutdown"
)

// E captures structured error information produced across the pipeline.
type E struct {
	Op      string
	Kind    Kind
	Message string
	Fields  map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and kind.
func New(op string, kind Kind, opts ...Option) *E {
	e := &E{
		Op:      strings.TrimSpace(op),
		Kind:    kind,
		Message: "",
		Fields:  nil,
		cause:   nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithField attaches a single structured field to the error.
func WithField(key, value string) Option {
	return func(e *E) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if e.Fields == nil {
			e.Fields = make(map[string]string, 1)
		}
		e.Fields[key] = value
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 4)

	op := strings.TrimSpace(e.Op)
	if op == "" {
		op = "unknown"
	}
	parts = append(parts, "op="+op)
	parts = append(parts, "kind="+string(e.Kind))

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Fields[k]))
		}
		parts = append(parts, "fields="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target shares this error's Kind, supporting errors.Is(err, errs.New("", KindX)).
func (e *E) Is(target error) bool {
	other, ok := target.(*E)
	if !ok || other == nil || e == nil {
		return false
	}
	return e.Kind == other.Kind
}

// ConfigInvalid builds a KindConfigInvalid envelope describing what failed validation.
func ConfigInvalid(op, what string) *E {
	return New(op, KindConfigInvalid, WithMessage(what))
}

// PipelineCycle builds a KindPipelineCycle envelope recording the cyclic path.
func PipelineCycle(op string, path []string) *E {
	return New(op, KindPipelineCycle,
		WithMessage("feature graph contains a cycle"),
		WithField("path", strings.Join(path, "->")))
}

// UnknownInstrument builds a KindUnknownInstrument envelope for the missing id.
func UnknownInstrument(op, id string) *E {
	return New(op, KindUnknownInstrument,
		WithMessage("instrument not registered"),
		WithField("instrument_id", id))
}
