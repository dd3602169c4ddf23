package worker

import (
	"context"
	"time"

	"github.com/clearwave/api/internal/audio"
	"github.com/clearwave/api/internal/config"
)

// Transformer is the worker's view of the transform library.
type Transformer interface {
	RemoveNoise(ctx context.Context, inputPath string) (string, error)
	RemoveVocals(ctx context.Context, inputPath string) (string, error)
	RemoveMelody(ctx context.Context, inputPath string) (string, error)
	Enhance(ctx context.Context, inputPath, preset string) (string, error)
}

// AudioTransformer adapts the audio package to the worker. Every call blocks
// the worker for its full duration (subprocess DSP, model inference), so each
// one runs under the configured deadline to keep a hung tool from pinning a
// worker forever.
type AudioTransformer struct {
	cfg config.AudioConfig
}

func NewAudioTransformer(cfg config.AudioConfig) *AudioTransformer {
	return &AudioTransformer{cfg: cfg}
}

func (t *AudioTransformer) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(t.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

func (t *AudioTransformer) RemoveNoise(ctx context.Context, inputPath string) (string, error) {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()
	return audio.RemoveNoise(ctx, inputPath, t.cfg.NoiseModelPath)
}

func (t *AudioTransformer) RemoveVocals(ctx context.Context, inputPath string) (string, error) {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()
	return audio.RemoveVocals(ctx, inputPath, t.cfg.DemucsModel)
}

func (t *AudioTransformer) RemoveMelody(ctx context.Context, inputPath string) (string, error) {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()
	return audio.RemoveMelody(ctx, inputPath, t.cfg.DemucsModel)
}

func (t *AudioTransformer) Enhance(ctx context.Context, inputPath, preset string) (string, error) {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()
	return audio.Enhance(ctx, inputPath, preset, audio.EnhanceOptions{
		SampleRate:   t.cfg.SampleRate,
		ChunkSeconds: t.cfg.ChunkSeconds,
	})
}

var _ Transformer = (*AudioTransformer)(nil)
