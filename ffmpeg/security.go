package ffmpeg

import (
	"fmt"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/google/shlex"
)

// Options the pipeline controls itself and users may not override. Keys
// are option names without a stream specifier. Besides inputs and
// overwrite behaviour this covers everything that picks the container or
// streams, replaces the pipeline's filter chain, or writes a second file.
var reservedFlags = map[string]bool{
	"-i":                     true,
	"-y":                     true,
	"-n":                     true,
	"-progress":              true,
	"-f":                     true,
	"-map":                   true,
	"-vf":                    true,
	"-af":                    true,
	"-filter":                true,
	"-filter_complex":        true,
	"-lavfi":                 true,
	"-filter_script":         true,
	"-filter_complex_script": true,
	"-passlogfile":           true,
	"-vstats_file":           true,
	"-attach":                true,
	"-dump_attachment":       true,
}

// Output options that take no value. Every other option consumes the
// token after it.
var valuelessFlags = map[string]bool{
	"-an":            true,
	"-vn":            true,
	"-sn":            true,
	"-dn":            true,
	"-shortest":      true,
	"-copyts":        true,
	"-start_at_zero": true,
}

// SplitExtraArgs splits user-supplied encoder options without a shell.
func SplitExtraArgs(extra string) ([]string, error) {
	args, err := shlex.Split(extra)
	if err != nil {
		return nil, fmt.Errorf("invalid argument syntax: %w", err)
	}
	return args, nil
}

// SanitizeExtraArgs accepts only a sequence of options, each followed by
// its value unless it is a known value-less flag. A stray positional token
// would be taken by ffmpeg as another output file, so it is rejected, as
// are shell metacharacters and reserved options.
func SanitizeExtraArgs(args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if err := checkChars(arg); err != nil {
			return err
		}
		if !isOption(arg) {
			return fmt.Errorf("unexpected argument %q: extra arguments must be options", arg)
		}
		name, _, _ := strings.Cut(arg, ":")
		if reservedFlags[name] {
			return fmt.Errorf("option %s is managed by the pipeline", arg)
		}
		if valuelessFlags[name] {
			continue
		}
		if i+1 >= len(args) {
			return fmt.Errorf("option %s needs a value", arg)
		}
		i++
		if err := checkChars(args[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkChars(arg string) error {
	if strings.ContainsAny(arg, "|&;`$()<>") {
		return fmt.Errorf("disallowed character found in argument: %s", arg)
	}
	return nil
}

// isOption reports whether arg looks like an ffmpeg option name rather
// than a value such as "-2".
func isOption(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	c := arg[1]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ParseExtraArgs splits and sanitizes in one step. Empty input yields nil.
func ParseExtraArgs(extra string) ([]string, error) {
	if strings.TrimSpace(extra) == "" {
		return nil, nil
	}
	args, err := SplitExtraArgs(extra)
	if err != nil {
		return nil, err
	}
	if err := SanitizeExtraArgs(args); err != nil {
		return nil, err
	}
	return args, nil
}

// ValidateInput checks that path is a regular file no larger than maxSize.
// A maxSize of zero means unlimited.
func ValidateInput(path string, maxSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("input %s is not a regular file", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return fmt.Errorf("input file size %s exceeds limit of %s",
			datasize.ByteSize(info.Size()).HumanReadable(), datasize.ByteSize(maxSize).HumanReadable())
	}
	return nil
}
