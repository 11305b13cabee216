package ffmpeg

import (
	"context"
	"os"
	"sync"
)

// fakeExec scripts ffprobe and ffmpeg. Output serves ffprobe and
// `ffmpeg -encoders`; CombinedOutput plays an ffmpeg pass and writes the
// file named by the last argument unless told otherwise.
type fakeExec struct {
	probeOut string
	probeErr error

	encoders    string
	encodersErr error

	// fail decides whether an ffmpeg pass fails; nil means success.
	fail func(args []string) error
	// noArtifact makes a successful pass leave no output behind.
	noArtifact bool

	mu    sync.Mutex
	calls []call
}

type call struct {
	name string
	args []string
}

func (f *fakeExec) record(name string, args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
}

func (f *fakeExec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.record(name, args)
	for _, a := range args {
		if a == "-encoders" {
			return []byte(f.encoders), f.encodersErr
		}
	}
	return []byte(f.probeOut), f.probeErr
}

func (f *fakeExec) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.record(name, args)
	if f.fail != nil {
		if err := f.fail(args); err != nil {
			return []byte("ffmpeg error output\n"), err
		}
	}
	if !f.noArtifact {
		if err := os.WriteFile(args[len(args)-1], []byte("encoded"), 0o644); err != nil {
			return nil, err
		}
	}
	return []byte("ffmpeg ok\n"), nil
}

func (f *fakeExec) callsTo(name string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c.args)
		}
	}
	return out
}

// ffmpegPasses returns ffmpeg invocations other than -encoders.
func (f *fakeExec) ffmpegPasses() [][]string {
	var out [][]string
	for _, args := range f.callsTo("ffmpeg") {
		if !contains(args, "-encoders") {
			out = append(out, args)
		}
	}
	return out
}

func contains(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}
