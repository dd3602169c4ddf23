package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// noiseReductionFilter is the statistical noise-reduction pass applied to every
// chunk before the preset chain.
const noiseReductionFilter = "afftdn=nr=24:nf=-30"

// EnhanceOptions bound the enhancement pass. SampleRate is the fixed mono
// output rate; ChunkSeconds caps how much audio is held per noise-estimation
// window.
type EnhanceOptions struct {
	SampleRate   int
	ChunkSeconds int
}

// Enhance resamples the input to fixed-rate mono, applies noise reduction and
// the named preset's effects chain, and writes <stem>_enhanced.wav next to the
// input. Inputs longer than ChunkSeconds are processed in fixed-size chunks and
// concatenated in order. The preset is resolved before any audio work so an
// unknown name fails without wasting a processing pass.
func Enhance(ctx context.Context, inputPath, presetName string, opts EnhanceOptions) (string, error) {
	preset, err := LookupPreset(presetName)
	if err != nil {
		return "", err
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.ChunkSeconds <= 0 {
		opts.ChunkSeconds = 300
	}

	workDir := filepath.Dir(inputPath)
	converted := filepath.Join(workDir, "converted.wav")
	if err := runTool(ctx, "ffmpeg", "-y", "-i", inputPath,
		"-ar", strconv.Itoa(opts.SampleRate), "-ac", "1", converted); err != nil {
		return "", fmt.Errorf("resample: %w", err)
	}

	info, err := Probe(ctx, converted)
	if err != nil {
		return "", err
	}

	outputPath := siblingPath(inputPath, "_enhanced", ".wav")
	chain := noiseReductionFilter + "," + preset.Filtergraph()

	if ChunkCount(info.Duration, opts.ChunkSeconds) <= 1 {
		if err := runTool(ctx, "ffmpeg", "-y", "-i", converted, "-af", chain, outputPath); err != nil {
			return "", fmt.Errorf("enhance: %w", err)
		}
		return outputPath, nil
	}

	chunks, err := splitChunks(ctx, converted, workDir, opts.ChunkSeconds)
	if err != nil {
		return "", err
	}

	processed := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out := filepath.Join(workDir, fmt.Sprintf("enhanced_chunk_%03d.wav", i))
		if err := runTool(ctx, "ffmpeg", "-y", "-i", chunk, "-af", chain, out); err != nil {
			return "", fmt.Errorf("enhance chunk %d: %w", i, err)
		}
		processed = append(processed, out)
	}

	if err := concatWAVs(ctx, processed, workDir, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// ChunkCount returns how many fixed-size chunks cover the given duration.
func ChunkCount(durationSeconds float64, chunkSeconds int) int {
	if durationSeconds <= 0 {
		return 1
	}
	n := int(durationSeconds) / chunkSeconds
	if durationSeconds > float64(n*chunkSeconds) {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// splitChunks segments the input into chunkSeconds-long WAV files and returns
// their paths in playback order.
func splitChunks(ctx context.Context, inputPath, workDir string, chunkSeconds int) ([]string, error) {
	pattern := filepath.Join(workDir, "chunk_%03d.wav")
	err := runTool(ctx, "ffmpeg", "-y", "-i", inputPath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(chunkSeconds),
		"-c", "copy",
		pattern)
	if err != nil {
		return nil, fmt.Errorf("split chunks: %w", err)
	}

	chunks, err := filepath.Glob(filepath.Join(workDir, "chunk_*.wav"))
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("split chunks: no segments produced")
	}
	sort.Strings(chunks)
	return chunks, nil
}

// concatWAVs joins the processed chunks back together with the concat demuxer.
func concatWAVs(ctx context.Context, parts []string, workDir, outputPath string) error {
	listPath := filepath.Join(workDir, "concat.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	for _, p := range parts {
		fmt.Fprintf(f, "file '%s'\n", p)
	}
	if err := f.Close(); err != nil {
		return err
	}

	err = runTool(ctx, "ffmpeg", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath)
	if err != nil {
		return fmt.Errorf("concat chunks: %w", err)
	}
	return nil
}
