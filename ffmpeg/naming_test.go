package ffmpeg

import (
	"path/filepath"
	"testing"

	"ffcompress/profile"

	"github.com/stretchr/testify/assert"
)

func TestOutputPath(t *testing.T) {
	dir := filepath.Join("videos", "trip")
	assert.Equal(t, filepath.Join(dir, "input_compressed.mp4"), OutputPath(filepath.Join(dir, "input.mp4"), profile.MP4))
	assert.Equal(t, filepath.Join(dir, "input_compressed.webm"), OutputPath(filepath.Join(dir, "input.mov"), profile.WebM))
	assert.Equal(t, filepath.Join(dir, "my.clip_compressed.mkv"), OutputPath(filepath.Join(dir, "my.clip.avi"), profile.MKV))
	assert.Equal(t, "noext_compressed.mp4", OutputPath("noext", profile.MP4))
}

func TestTempPath(t *testing.T) {
	dir := filepath.Join("videos", "trip")
	assert.Equal(t, filepath.Join(dir, "input_temp_fixed_cfr.mov"), TempPath(filepath.Join(dir, "input.mov")))
	assert.Equal(t, "input_temp_fixed_cfr.webm", TempPath("input.webm"))
	assert.Equal(t, "noext_temp_fixed_cfr.mkv", TempPath("noext"))
}

func TestIsDerived(t *testing.T) {
	assert.True(t, IsDerived("/v/a_compressed.mp4"))
	assert.True(t, IsDerived("/v/a_temp_fixed_cfr.mkv"))
	assert.False(t, IsDerived("/v/a.mp4"))
	assert.False(t, IsDerived("/v/compressed_notes.mp4"))
}
