package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStem(t *testing.T, root string, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestFindStem_Vocals(t *testing.T) {
	root := t.TempDir()
	want := writeStem(t, root, "htdemucs", "track", "vocals.wav")

	got, err := findStem(root, "vocals")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindStem_AccompanimentAliases(t *testing.T) {
	cases := []struct {
		name     string
		filename string
	}{
		{"canonical", "accompaniment.wav"},
		{"two_stems_underscore", "no_vocals.wav"},
		{"two_stems_hyphen", "no-vocals.wav"},
		{"four_stem_other", "other.wav"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			want := writeStem(t, root, "htdemucs", "track", tc.filename)

			got, err := findStem(root, "accompaniment")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestFindStem_PrefersEarlierAlias(t *testing.T) {
	root := t.TempDir()
	want := writeStem(t, root, "htdemucs", "track", "accompaniment.wav")
	writeStem(t, root, "htdemucs", "track", "other.wav")

	got, err := findStem(root, "accompaniment")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindStem_CaseInsensitive(t *testing.T) {
	root := t.TempDir()
	want := writeStem(t, root, "htdemucs", "track", "Vocals.WAV")

	got, err := findStem(root, "vocals")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindStem_Missing(t *testing.T) {
	root := t.TempDir()
	writeStem(t, root, "htdemucs", "track", "drums.wav")

	_, err := findStem(root, "vocals")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStemNotFound)
}

func TestFindStem_UnknownStemFallsBackToName(t *testing.T) {
	root := t.TempDir()
	want := writeStem(t, root, "model", "track", "bass.wav")

	got, err := findStem(root, "bass")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
