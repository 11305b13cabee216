package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	return p
}

func withExecutable(t *testing.T, path string) {
	t.Helper()
	prev := executable
	executable = func() (string, error) { return path, nil }
	t.Cleanup(func() { executable = prev })
}

func TestResolveTools(t *testing.T) {
	t.Run("explicit paths", func(t *testing.T) {
		dir := t.TempDir()
		ff := writeBinary(t, dir, "my-ffmpeg")
		fp := writeBinary(t, dir, "my-ffprobe")

		tools, err := ResolveTools(&Config{FFBin: ff, FFprobeBin: fp})
		require.NoError(t, err)
		assert.Equal(t, ff, tools.FFmpeg)
		assert.Equal(t, fp, tools.FFprobe)
	})

	t.Run("missing explicit path is an initialization error", func(t *testing.T) {
		_, err := ResolveTools(&Config{FFBin: filepath.Join(t.TempDir(), "ffmpeg"), FFprobeBin: "ffprobe"})
		assert.True(t, errors.Is(err, ErrToolNotFound))
	})

	t.Run("next to the executable before tools dir", func(t *testing.T) {
		appDir, toolsDir := t.TempDir(), t.TempDir()
		withExecutable(t, filepath.Join(appDir, "ffcompress"))
		want := writeBinary(t, appDir, "fftool-a")
		writeBinary(t, toolsDir, "fftool-a")
		probe := writeBinary(t, toolsDir, "fftool-b")

		tools, err := ResolveTools(&Config{FFBin: "fftool-a", FFprobeBin: "fftool-b", ToolsDir: toolsDir})
		require.NoError(t, err)
		assert.Equal(t, want, tools.FFmpeg)
		assert.Equal(t, probe, tools.FFprobe)
	})

	t.Run("falls back to PATH", func(t *testing.T) {
		withExecutable(t, filepath.Join(t.TempDir(), "ffcompress"))
		binDir := t.TempDir()
		want := writeBinary(t, binDir, "fftool-path")
		t.Setenv("PATH", binDir)

		tools, err := ResolveTools(&Config{FFBin: "fftool-path", FFprobeBin: "fftool-path"})
		require.NoError(t, err)
		assert.Equal(t, want, tools.FFmpeg)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		withExecutable(t, filepath.Join(t.TempDir(), "ffcompress"))
		t.Setenv("PATH", t.TempDir())

		_, err := ResolveTools(&Config{FFBin: "definitely-missing", FFprobeBin: "ffprobe", ToolsDir: t.TempDir()})
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("non-executable file is skipped", func(t *testing.T) {
		dir := t.TempDir()
		withExecutable(t, filepath.Join(dir, "ffcompress"))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fftool-plain"), []byte("x"), 0o644))
		t.Setenv("PATH", t.TempDir())

		_, err := ResolveTools(&Config{FFBin: "fftool-plain", FFprobeBin: "fftool-plain"})
		assert.ErrorIs(t, err, ErrToolNotFound)
	})
}
