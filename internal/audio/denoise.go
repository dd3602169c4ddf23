package audio

import (
	"context"
	"fmt"
)

// RemoveNoise runs the RNNoise spectral filter over the input and writes a
// sibling file with a _denoised suffix. The function only depends on the input
// being decodable audio, so re-running it over its own output is safe.
func RemoveNoise(ctx context.Context, inputPath, modelPath string) (string, error) {
	outputPath := siblingPath(inputPath, "_denoised", ".wav")

	err := runTool(ctx, "ffmpeg", "-y",
		"-i", inputPath,
		"-af", fmt.Sprintf("arnndn=m=%s", modelPath),
		outputPath)
	if err != nil {
		return "", fmt.Errorf("noise removal: %w", err)
	}

	return outputPath, nil
}
