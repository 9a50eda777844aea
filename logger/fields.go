package logger

import (
	"time"
)

// Field keys shared by the engine, the pipeline lifecycle and the adapters.
const (
	FieldComponent   = "component"
	FieldPipeline    = "pipeline"
	FieldProcessor   = "processor"
	FieldProcessorID = "processor_id"
	FieldChannel     = "channel"
	FieldPhase       = "phase"
	FieldDepth       = "depth"
	FieldRounds      = "rounds"
	FieldReason      = "reason"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldTraceID     = "trace_id"
	FieldSpanID      = "span_id"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Info("routed", logger.Fields("channel", "success", "depth", 2))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ProcessorFields identifies a processor by display name and id.
func ProcessorFields(name, id string) map[string]interface{} {
	return map[string]interface{}{
		FieldProcessor:   name,
		FieldProcessorID: id,
	}
}

// PhaseFields creates fields for a lifecycle phase of a processor.
func PhaseFields(phase, processor string) map[string]interface{} {
	return map[string]interface{}{
		FieldPhase:     phase,
		FieldProcessor: processor,
	}
}

// ErrorFields creates fields for a phase that failed.
func ErrorFields(phase string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldPhase: phase,
		FieldError: err.Error(),
	}
}

// MergeWithError adds an error field to an existing map.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldError] = err.Error()
	return fields
}

// MergeWithDuration adds a duration field to an existing map.
func MergeWithDuration(fields map[string]interface{}, d time.Duration) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldDuration] = d.Milliseconds()
	return fields
}
