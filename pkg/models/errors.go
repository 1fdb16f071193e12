package models

import "fmt"

// MetadataError reports malformed or invalid recording metadata.
type MetadataError struct {
	Field  string
	Reason string
	Err    error
}

func (e *MetadataError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("metadata: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("metadata: %s", e.Reason)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// ShapeMismatchError reports a disagreement between a sample buffer and the
// metadata that is supposed to describe it.
type ShapeMismatchError struct {
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s", e.Reason)
}

// ConfigurationError reports invalid transform or aggregation parameters.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// AxisMismatchError reports spectrograms whose time or frequency axes do not
// line up for aggregation.
type AxisMismatchError struct {
	Reason string
}

func (e *AxisMismatchError) Error() string {
	return fmt.Sprintf("axis mismatch: %s", e.Reason)
}
