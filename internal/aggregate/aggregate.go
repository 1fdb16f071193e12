// Package aggregate combines per-channel spectrograms into the pipeline's
// final result: either the untouched per-channel collection or an elementwise
// reduction across the channel dimension.
package aggregate

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nlarssen/micspect/pkg/models"
)

// Aggregate combines results according to mode. All inputs must share
// identical time and frequency axes (guaranteed when they come from one
// Transform batch); any disagreement fails with AxisMismatchError rather than
// silently truncating or padding. The inputs are never modified.
func Aggregate(results []*models.SpectrogramResult, mode models.AggregationMode) (*models.AggregatedResult, error) {
	if len(results) == 0 {
		return nil, &models.ConfigurationError{Reason: "nothing to aggregate"}
	}
	if err := checkAxes(results); err != nil {
		return nil, err
	}

	switch mode {
	case models.AggregatePreserve:
		channels := make([]*models.SpectrogramResult, len(results))
		copy(channels, results)
		return &models.AggregatedResult{Mode: mode, Channels: channels}, nil
	case models.AggregateMean:
		return &models.AggregatedResult{Mode: mode, Combined: reduceMean(results)}, nil
	case models.AggregateMax:
		return &models.AggregatedResult{Mode: mode, Combined: reduceMax(results)}, nil
	default:
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown aggregation mode %q", mode)}
	}
}

func checkAxes(results []*models.SpectrogramResult) error {
	first := results[0]
	for _, r := range results[1:] {
		if !floats.Equal(r.Times, first.Times) {
			return &models.AxisMismatchError{Reason: fmt.Sprintf("channel %d time axis differs from channel %d", r.Channel, first.Channel)}
		}
		if !floats.Equal(r.Frequencies, first.Frequencies) {
			return &models.AxisMismatchError{Reason: fmt.Sprintf("channel %d frequency axis differs from channel %d", r.Channel, first.Channel)}
		}
		if len(r.Values) != len(first.Values) {
			return &models.AxisMismatchError{Reason: fmt.Sprintf("channel %d has %d frames, channel %d has %d", r.Channel, len(r.Values), first.Channel, len(first.Values))}
		}
	}
	for _, r := range results {
		for t, row := range r.Values {
			if len(row) != len(first.Frequencies) {
				return &models.AxisMismatchError{Reason: fmt.Sprintf("channel %d frame %d has %d bins, axis has %d", r.Channel, t, len(row), len(first.Frequencies))}
			}
		}
	}
	return nil
}

func reduceMean(results []*models.SpectrogramResult) *models.SpectrogramResult {
	out := emptyLike(results[0])
	for t := range out.Values {
		for _, r := range results {
			floats.Add(out.Values[t], r.Values[t])
		}
		floats.Scale(1/float64(len(results)), out.Values[t])
	}
	return out
}

func reduceMax(results []*models.SpectrogramResult) *models.SpectrogramResult {
	out := emptyLike(results[0])
	for t := range out.Values {
		row := out.Values[t]
		copy(row, results[0].Values[t])
		for _, r := range results[1:] {
			for k, v := range r.Values[t] {
				if v > row[k] {
					row[k] = v
				}
			}
		}
	}
	return out
}

// emptyLike allocates a zeroed combined result sharing r's axes. The channel
// index -1 marks a reduction across channels.
func emptyLike(r *models.SpectrogramResult) *models.SpectrogramResult {
	values := make([][]float64, len(r.Values))
	for t := range values {
		values[t] = make([]float64, len(r.Frequencies))
	}
	return &models.SpectrogramResult{
		Channel:     -1,
		Times:       r.Times,
		Frequencies: r.Frequencies,
		Values:      values,
	}
}
