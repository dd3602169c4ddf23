package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcessError reports a failed DSP subprocess, carrying the tool's diagnostic
// output so callers can log the raw cause.
type ProcessError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// runTool executes an external DSP tool and converts a nonzero exit into a
// ProcessError with the captured stderr.
func runTool(ctx context.Context, tool string, args ...string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &ProcessError{Tool: tool, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// ConvertToWAV converts the input to WAV next to it, skipping the conversion
// when the file already is one. The returned path equals the input in that case.
func ConvertToWAV(ctx context.Context, inputPath string) (string, error) {
	if strings.EqualFold(filepath.Ext(inputPath), ".wav") {
		return inputPath, nil
	}
	wavPath := siblingPath(inputPath, "_temp", ".wav")
	if err := runTool(ctx, "ffmpeg", "-y", "-i", inputPath, wavPath); err != nil {
		return "", fmt.Errorf("convert to wav: %w", err)
	}
	return wavPath, nil
}

// ExtractAudio pulls the audio track out of a video container as 16 kHz mono
// PCM WAV, the format the downstream transforms expect.
func ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	err := runTool(ctx, "ffmpeg", "-y", "-i", inputPath,
		"-vn", "-acodec", "pcm_s16le", "-ac", "1", "-ar", "16000",
		outputPath)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// ProbeInfo is the subset of ffprobe output the service cares about.
type ProbeInfo struct {
	Duration   float64
	SampleRate int
	Channels   int
}

// Probe inspects a media file with ffprobe.
func Probe(ctx context.Context, inputPath string) (*ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &ProbeInfo{}
	if probe.Format.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	}
	for _, stream := range probe.Streams {
		if stream.CodecType == "audio" {
			info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
			info.Channels = stream.Channels
			break
		}
	}
	return info, nil
}

// siblingPath builds a path next to src with a suffix appended to the stem and
// the given extension, e.g. siblingPath("a/b.mp3", "_denoised", ".wav") ->
// "a/b_denoised.wav".
func siblingPath(src, suffix, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(filepath.Dir(src), stem+suffix+ext)
}
