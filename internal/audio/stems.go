package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrStemNotFound means the separation model finished but none of the expected
// stem filenames exist in its output directory. That points at a model layout
// change, not a routine missing file.
var ErrStemNotFound = errors.New("separated stem not found in model output")

// stemAliases maps a logical stem to the filenames the separation model may
// emit for it, in preference order. The instrumental stem in particular has
// been named differently across model versions and configurations.
var stemAliases = map[string][]string{
	"accompaniment": {"accompaniment", "no_vocals", "no-vocals", "other"},
	"vocals":        {"vocals"},
}

// RemoveVocals strips the vocal stem, keeping the instrumental, and writes
// <stem>_instrumental.wav next to the input.
func RemoveVocals(ctx context.Context, inputPath, modelName string) (string, error) {
	return removeStem(ctx, inputPath, "vocals", "accompaniment", "_instrumental", modelName)
}

// RemoveMelody extracts the vocal stem, dropping the backing track, and writes
// <stem>_vocals.wav next to the input.
func RemoveMelody(ctx context.Context, inputPath, modelName string) (string, error) {
	return removeStem(ctx, inputPath, "vocals", "vocals", "_vocals", modelName)
}

// removeStem runs a two-way source separation and keeps the desired stem.
// extractStem is what the model splits against; desiredStem is the logical
// output we keep. Temp artifacts are removed on every exit path.
func removeStem(ctx context.Context, inputPath, extractStem, desiredStem, suffix, modelName string) (string, error) {
	wavPath, err := ConvertToWAV(ctx, inputPath)
	if err != nil {
		return "", err
	}
	defer func() {
		if wavPath != inputPath {
			os.Remove(wavPath)
		}
	}()

	sepDir, err := os.MkdirTemp("", "separate_")
	if err != nil {
		return "", fmt.Errorf("create separation dir: %w", err)
	}
	defer os.RemoveAll(sepDir)

	err = runTool(ctx, "python3", "-m", "demucs",
		"-n", modelName,
		"--two-stems", extractStem,
		"-o", sepDir,
		wavPath)
	if err != nil {
		return "", fmt.Errorf("stem separation: %w", err)
	}

	stemPath, err := findStem(sepDir, desiredStem)
	if err != nil {
		return "", err
	}

	outputPath := siblingPath(inputPath, suffix, ".wav")
	if err := os.Rename(stemPath, outputPath); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		if copyErr := copyFile(stemPath, outputPath); copyErr != nil {
			return "", fmt.Errorf("move stem output: %w", copyErr)
		}
	}
	return outputPath, nil
}

// findStem walks the separation output for the first filename alias that
// exists for the logical stem.
func findStem(root, stem string) (string, error) {
	aliases, ok := stemAliases[stem]
	if !ok {
		aliases = []string{stem}
	}

	var found string
	for _, alias := range aliases {
		target := alias + ".wav"
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(d.Name(), target) {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("scan separation output: %w", err)
		}
		if found != "" {
			return found, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v under %s", ErrStemNotFound, aliases, root)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
