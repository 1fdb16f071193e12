package models

// SpectrogramResult is one channel's time-frequency matrix together with its
// axes. Results produced by one Transform batch share their axis slices
// verbatim, which is what makes them aggregatable. Read-only after creation.
type SpectrogramResult struct {
	Channel     int         `json:"channel"`
	Times       []float64   `json:"times"`
	Frequencies []float64   `json:"frequencies"`
	Values      [][]float64 `json:"values"`
}

// AggregationMode selects how per-channel spectrograms are combined.
type AggregationMode string

const (
	// AggregatePreserve keeps the per-channel collection untouched.
	AggregatePreserve AggregationMode = "preserve"
	// AggregateMean reduces channels to their elementwise arithmetic mean.
	AggregateMean AggregationMode = "mean"
	// AggregateMax reduces channels to their elementwise maximum.
	AggregateMax AggregationMode = "max"
)

// AggregatedResult is the pipeline's final output: either the per-channel
// collection (preserve) or a single combined spectrogram (mean/max). Owned
// by the invocation that produced it and never mutated afterward.
type AggregatedResult struct {
	ID       string               `json:"id"`
	Mode     AggregationMode      `json:"mode"`
	Channels []*SpectrogramResult `json:"channels,omitempty"`
	Combined *SpectrogramResult   `json:"combined,omitempty"`
}
