package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/nlarssen/micspect/internal/config"
	"github.com/nlarssen/micspect/internal/pipeline"
	"github.com/nlarssen/micspect/internal/spectrogram"
	"github.com/nlarssen/micspect/internal/wavio"
	"github.com/nlarssen/micspect/pkg/models"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	metaPath := flag.String("meta", "", "path to recording metadata JSON (required)")
	outDir := flag.String("out", ".", "directory for result JSON files")
	start := flag.Float64("start", 0, "start of the analysis window in seconds")
	end := flag.Float64("end", 0, "end of the analysis window in seconds (0 = end of file)")
	normalize := flag.Bool("normalize", false, "peak-normalize each channel before calibration")
	flag.Parse()

	if *metaPath == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: micspect -meta metadata.json [-out dir] [-start s] [-end s] [-normalize] recording.wav ...")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	metaJSON, err := os.ReadFile(*metaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *metaPath).Msg("failed to read metadata file")
	}
	meta, err := models.ParseMetadata(metaJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid recording metadata")
	}

	pipe := pipeline.New(log.Logger, spectrogram.Config{
		WindowSize: cfg.Spectrogram.WindowSize,
		HopSize:    cfg.Spectrogram.HopSize,
		Window:     spectrogram.WindowFunc(cfg.Spectrogram.Window),
		Scale:      spectrogram.Scale(cfg.Spectrogram.Scale),
		Workers:    cfg.Spectrogram.Workers,
	}, models.AggregationMode(cfg.Aggregate.Mode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	files := flag.Args()
	progress := mpb.New(mpb.WithWidth(64))
	bar := progress.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Processing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	failed := 0
	for _, path := range files {
		if err := processFile(ctx, pipe, meta, path, *outDir, *start, *end, *normalize); err != nil {
			if ctx.Err() != nil {
				log.Warn().Msg("interrupted, stopping")
				break
			}
			log.Error().Err(err).Str("file", path).Msg("processing failed")
			failed++
		}
		bar.Increment()
	}
	progress.Wait()

	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("some recordings could not be processed")
	}
	log.Info().Int("files", len(files)).Msg("all recordings processed")
}

func processFile(ctx context.Context, pipe *pipeline.Pipeline, meta *models.RecordingMetadata, path, outDir string, start, end float64, normalize bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	raw, err := wavio.Decode(f)
	if err != nil {
		return err
	}
	if start > 0 || end > 0 {
		raw, err = wavio.Slice(raw, start, end)
		if err != nil {
			return err
		}
	}
	if normalize {
		raw = wavio.Normalize(raw)
	}

	result, err := pipe.Run(ctx, meta, raw)
	if err != nil {
		return err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dest := filepath.Join(outDir, base+".spectrogram.json")
	if err := os.WriteFile(dest, out, 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
