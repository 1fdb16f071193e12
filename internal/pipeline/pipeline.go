// Package pipeline wires the stages together: metadata validation,
// calibration, the windowed transform, and aggregation. Each stage is a pure
// function of its inputs; the pipeline adds orchestration, structured
// logging, and cancellation between stages.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nlarssen/micspect/internal/aggregate"
	"github.com/nlarssen/micspect/internal/calibration"
	"github.com/nlarssen/micspect/internal/spectrogram"
	"github.com/nlarssen/micspect/pkg/models"
)

// Pipeline runs raw multi-channel buffers through calibration, the
// short-time transform, and aggregation. Safe for concurrent use; every Run
// owns its intermediate buffers and result.
type Pipeline struct {
	log  zerolog.Logger
	cfg  spectrogram.Config
	mode models.AggregationMode
}

// New returns a pipeline with the given transform configuration and
// aggregation mode.
func New(log zerolog.Logger, cfg spectrogram.Config, mode models.AggregationMode) *Pipeline {
	return &Pipeline{log: log, cfg: cfg, mode: mode}
}

// Run executes the full pipeline for one buffer. The raw buffer and metadata
// are never modified; on any error no partial result escapes.
func (p *Pipeline) Run(ctx context.Context, meta *models.RecordingMetadata, raw *models.RawChannelBuffer) (*models.AggregatedResult, error) {
	runID := uuid.New().String()
	log := p.log.With().Str("run_id", runID).Logger()
	start := time.Now()

	log.Info().
		Int("channels", raw.ChannelCount()).
		Int("samples", raw.FrameLen()).
		Float64("sample_rate", raw.SampleRate).
		Msg("pipeline start")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	calibrated, err := calibration.Calibrate(raw, meta)
	if err != nil {
		log.Error().Err(err).Msg("calibration failed")
		return nil, err
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("calibration done")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results, err := spectrogram.Transform(ctx, calibrated, p.cfg)
	if err != nil {
		log.Error().Err(err).Msg("transform failed")
		return nil, err
	}
	log.Debug().
		Int("frames", len(results[0].Times)).
		Int("bins", len(results[0].Frequencies)).
		Dur("elapsed", time.Since(start)).
		Msg("transform done")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	agg, err := aggregate.Aggregate(results, p.mode)
	if err != nil {
		log.Error().Err(err).Msg("aggregation failed")
		return nil, err
	}
	agg.ID = runID

	log.Info().
		Str("mode", string(p.mode)).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline complete")
	return agg, nil
}

// RunJSON parses and validates metadata JSON before running the pipeline.
func (p *Pipeline) RunJSON(ctx context.Context, metaJSON []byte, raw *models.RawChannelBuffer) (*models.AggregatedResult, error) {
	meta, err := models.ParseMetadata(metaJSON)
	if err != nil {
		p.log.Error().Err(err).Msg("metadata rejected")
		return nil, err
	}
	return p.Run(ctx, meta, raw)
}
