package audio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrUnknownPreset is returned for preset names outside the registry. The
// dispatch layer rejects these before enqueueing; the transform rejects them
// again before touching any audio.
var ErrUnknownPreset = errors.New("unknown enhancement preset")

// Effect stages. A preset is an ordered chain of these; each compiles to one
// ffmpeg filter.

type Gate struct {
	ThresholdDB float64
	Ratio       float64
	ReleaseMS   float64
}

type Compressor struct {
	ThresholdDB float64
	Ratio       float64
}

type Gain struct {
	DB float64
}

type LowShelf struct {
	CutoffHz float64
	GainDB   float64
	Q        float64
}

type HighShelf struct {
	CutoffHz float64
	GainDB   float64
	Q        float64
}

// Stage is one step of an enhancement effects chain.
type Stage interface {
	filter() string
}

func dbToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

func (g Gate) filter() string {
	return fmt.Sprintf("agate=threshold=%.6f:ratio=%g:release=%g",
		dbToAmplitude(g.ThresholdDB), g.Ratio, g.ReleaseMS)
}

func (c Compressor) filter() string {
	return fmt.Sprintf("acompressor=threshold=%.6f:ratio=%g",
		dbToAmplitude(c.ThresholdDB), c.Ratio)
}

func (g Gain) filter() string {
	return fmt.Sprintf("volume=%gdB", g.DB)
}

func (s LowShelf) filter() string {
	return fmt.Sprintf("lowshelf=f=%g:g=%g:width_type=q:w=%g", s.CutoffHz, s.GainDB, s.Q)
}

func (s HighShelf) filter() string {
	return fmt.Sprintf("highshelf=f=%g:g=%g:width_type=q:w=%g", s.CutoffHz, s.GainDB, s.Q)
}

// Preset is a named, fixed effects chain for the enhancement operation.
type Preset struct {
	Name        string
	Description string
	Chain       []Stage
}

// Filtergraph renders the chain as an ffmpeg audio filtergraph.
func (p Preset) Filtergraph() string {
	filters := make([]string, 0, len(p.Chain))
	for _, stage := range p.Chain {
		filters = append(filters, stage.filter())
	}
	return strings.Join(filters, ",")
}

// presets is the fixed registry, loaded once and never mutated at runtime.
var presets = map[string]Preset{
	"smart_enhancement": {
		Name:        "smart_enhancement",
		Description: "Universal speech cleanup: noise suppression and voice lift.",
		Chain: []Stage{
			Gate{ThresholdDB: -30, Ratio: 1.5, ReleaseMS: 250},
			Compressor{ThresholdDB: -16, Ratio: 2.5},
			Gain{DB: 6},
		},
	},
	"clear_speech": {
		Name:        "clear_speech",
		Description: "Voice memos and home recordings.",
		Chain: []Stage{
			Gate{ThresholdDB: -30, Ratio: 1.5, ReleaseMS: 250},
			Compressor{ThresholdDB: -16, Ratio: 2.5},
			Gain{DB: 8},
		},
	},
	"quiet_voice_boost": {
		Name:        "quiet_voice_boost",
		Description: "Amplifies and clarifies a weak voice.",
		Chain: []Stage{
			LowShelf{CutoffHz: 200, GainDB: 4.0, Q: 0.7},
			Compressor{ThresholdDB: -20, Ratio: 2.0},
			Gain{DB: 5},
		},
	},
	"lecture_optimization": {
		Name:        "lecture_optimization",
		Description: "Suppresses room noise and sharpens a lecturer's speech.",
		Chain: []Stage{
			Gate{ThresholdDB: -32, Ratio: 1.8, ReleaseMS: 300},
			Compressor{ThresholdDB: -18, Ratio: 2.5},
			Gain{DB: 6},
		},
	},
	"expressive_speech": {
		Name:        "expressive_speech",
		Description: "Brightens the voice and lifts the high end.",
		Chain: []Stage{
			Compressor{ThresholdDB: -15, Ratio: 3.0},
			HighShelf{CutoffHz: 6000, GainDB: 3.0, Q: 0.7},
			Gain{DB: 7},
		},
	},
	"noisy_environment_cleanup": {
		Name:        "noisy_environment_cleanup",
		Description: "Aggressive filtering for street, transit and crowd noise.",
		Chain: []Stage{
			Gate{ThresholdDB: -35, Ratio: 2.0, ReleaseMS: 350},
			Compressor{ThresholdDB: -18, Ratio: 2.8},
			Gain{DB: 9},
		},
	},
	"video_voice_enhancement": {
		Name:        "video_voice_enhancement",
		Description: "Voice-over polish for video and podcasts.",
		Chain: []Stage{
			HighShelf{CutoffHz: 4000, GainDB: 1.5, Q: 1.0},
			Compressor{ThresholdDB: -17, Ratio: 2.2},
			Gain{DB: 6},
		},
	},
}

// LookupPreset resolves a preset by name.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// Presets returns every registered preset, sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
