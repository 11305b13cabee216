package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrToolNotFound is returned when an external binary cannot be located.
var ErrToolNotFound = errors.New("tool not found")

// Tools holds resolved absolute paths of the external binaries.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// overridden in tests
var executable = os.Executable

// ResolveTools locates ffmpeg and ffprobe once at startup. Each tool is
// looked up as: explicit path from config, next to the running binary,
// inside TOOLS_DIR, then on PATH.
func ResolveTools(cfg *Config) (Tools, error) {
	ffmpeg, err := resolveTool(cfg.FFBin, cfg.ToolsDir)
	if err != nil {
		return Tools{}, err
	}
	ffprobe, err := resolveTool(cfg.FFprobeBin, cfg.ToolsDir)
	if err != nil {
		return Tools{}, err
	}
	return Tools{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

func resolveTool(configured, toolsDir string) (string, error) {
	if configured == "" {
		return "", fmt.Errorf("empty tool name: %w", ErrToolNotFound)
	}

	// A value with a directory component is an explicit location.
	if strings.ContainsRune(configured, '/') || strings.ContainsRune(configured, filepath.Separator) {
		if isExecutable(configured) {
			return filepath.Abs(configured)
		}
		return "", fmt.Errorf("%s: %w", configured, ErrToolNotFound)
	}

	name := configured
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}

	var candidates []string
	if exe, err := executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), name))
	}
	if toolsDir != "" {
		candidates = append(candidates, filepath.Join(toolsDir, name))
	}
	for _, c := range candidates {
		if isExecutable(c) {
			return filepath.Abs(c)
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		return filepath.Abs(p)
	}
	return "", fmt.Errorf("%s not next to the executable, in %q, or on PATH: %w", configured, toolsDir, ErrToolNotFound)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}
