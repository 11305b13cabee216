package ffmpeg

import (
	"path/filepath"
	"strings"

	"ffcompress/profile"
)

const (
	CompressedSuffix = "_compressed"
	TempSuffix       = "_temp_fixed_cfr"
)

// Used for the normalization temp file when the input has no extension.
const fallbackTempExt = ".mkv"

func splitName(path string) (dir, stem, ext string) {
	dir, base := filepath.Split(path)
	ext = filepath.Ext(base)
	return dir, strings.TrimSuffix(base, ext), ext
}

// OutputPath returns {dir}/{stem}_compressed.{profile extension}.
func OutputPath(input string, p profile.Profile) string {
	dir, stem, _ := splitName(input)
	return filepath.Join(dir, stem+CompressedSuffix+"."+p.Extension())
}

// TempPath returns {dir}/{stem}_temp_fixed_cfr{original extension}.
func TempPath(input string) string {
	dir, stem, ext := splitName(input)
	if ext == "" {
		ext = fallbackTempExt
	}
	return filepath.Join(dir, stem+TempSuffix+ext)
}

// IsDerived reports whether path looks like one of our own outputs or
// temp files, so watchers and directory scans can skip it.
func IsDerived(path string) bool {
	_, stem, _ := splitName(path)
	return strings.HasSuffix(stem, CompressedSuffix) || strings.HasSuffix(stem, TempSuffix)
}
