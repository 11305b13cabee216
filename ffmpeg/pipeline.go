package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ffcompress/config"
	"ffcompress/task"

	"github.com/hashicorp/go-hclog"
)

// Keep at most this much ffmpeg output per job.
const maxLogBytes = 64 * 1024

// Pipeline compresses one file: probe, optional frame-rate normalization,
// encode, cleanup. It implements task.Runner.
type Pipeline struct {
	ffmpeg     string
	exec       Executor
	prober     *Prober
	detector   *Detector
	hwaccel    bool
	thresholds Thresholds
	log        hclog.Logger

	removeFile func(string) error
}

// NewPipeline wires a pipeline from resolved tool paths. A nil Executor
// means os/exec.
func NewPipeline(cfg *config.Config, tools config.Tools, ex Executor, log hclog.Logger) *Pipeline {
	if ex == nil {
		ex = ExecExecutor{}
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	detector := NewDetector(tools.FFmpeg, ex, cfg.CapabilityCache, log.Named("capability"))
	return &Pipeline{
		ffmpeg:   tools.FFmpeg,
		exec:     ex,
		prober:   NewProber(tools.FFprobe, ex, detector, cfg.HWAccel, log.Named("probe")),
		detector: detector,
		hwaccel:  cfg.HWAccel,
		thresholds: Thresholds{
			CPUIdle:  cfg.ThrottleCPU,
			FreeMem:  cfg.ThrottleFreeMem,
			FreeDisk: cfg.ThrottleFreeDisk,
		},
		log:        log.Named("pipeline"),
		removeFile: os.Remove,
	}
}

// Probe exposes the metadata probe.
func (p *Pipeline) Probe(ctx context.Context, path string) VideoMetadata {
	return p.prober.Probe(ctx, path)
}

// Capabilities exposes encoder detection.
func (p *Pipeline) Capabilities(ctx context.Context) Capabilities {
	return p.detector.Detect(ctx)
}

// runState is owned by a single Run call.
type runState struct {
	job    task.Job
	events chan<- task.Event
	stage  task.Stage
	input  string
	temp   string
	out    strings.Builder
}

func (s *runState) enter(stage task.Stage) {
	s.stage = stage
	if s.events != nil {
		s.events <- task.Event{Type: task.EventStage, TaskID: s.job.ID, Stage: stage}
	}
}

func (s *runState) progress(v float64) {
	if s.events != nil {
		s.events <- task.Event{Type: task.EventProgress, TaskID: s.job.ID, Stage: s.stage, Progress: v}
	}
}

func (s *runState) record(out []byte) {
	s.out.Write(out)
}

func (s *runState) log() string {
	l := s.out.String()
	if len(l) > maxLogBytes {
		l = l[len(l)-maxLogBytes:]
	}
	return l
}

func (s *runState) fail(kind, err error) error {
	return &task.StageError{Stage: s.stage, Kind: kind, Err: err, Output: s.log()}
}

// Run executes the pipeline for job. Stage and progress events go to
// events, which may be nil. Progress is 0.5 after a normalization pass and
// 1.0 on success; nothing else is reported. The temp file is removed on
// every exit path.
func (p *Pipeline) Run(ctx context.Context, job task.Job, events chan<- task.Event) (res task.Result, err error) {
	st := &runState{job: job, events: events, stage: task.StageIdle, input: job.InputPath}
	log := p.log.With("task_id", job.ID, "path", job.InputPath)

	defer func() {
		if st.temp != "" {
			if rmErr := p.remove(st.temp); rmErr != nil {
				log.Warn("could not remove temp file", "temp", st.temp, "error", rmErr)
			}
		}
		res.Log = st.log()
	}()

	if info, statErr := os.Stat(job.InputPath); statErr == nil {
		res.InputSize = info.Size()
	}

	md := p.prober.Probe(ctx, job.InputPath)
	st.enter(task.StageProbed)

	if job.ForceFix || md.NeedsVFRFix {
		st.enter(task.StageFixingVFR)
		temp := TempPath(job.InputPath)
		st.temp = temp
		log.Info("normalizing frame rate", "temp", temp, "forced", job.ForceFix, "vfr", md.NeedsVFRFix)
		if err := p.runFFmpeg(ctx, st, NormalizeArgs(job.InputPath, temp), temp); err != nil {
			return res, err
		}
		st.input = temp
		res.Normalized = true
		st.progress(0.5)
	}

	st.enter(task.StageEncoding)
	output := OutputPath(job.InputPath, job.Profile)
	encoder := SelectEncoder(job.Profile, p.detector.Detect(ctx), p.hwaccel)
	res.Encoder = encoder.Name
	for _, w := range CheckResources(filepath.Dir(output), p.thresholds) {
		log.Warn("resource check", "warning", w)
	}

	// Jobs reaching the runner without queue validation still get a
	// quality the encoder accepts.
	quality := job.Profile.QualityRange().Clamp(job.Profile.ResolveQuality(job.Quality))
	args := EncodeArgs(EncodeOptions{
		Input:   st.input,
		Output:  output,
		Profile: job.Profile,
		Quality: quality,
		Encoder: encoder,
		Extra:   job.ExtraArgs,
	})
	log.Info("encoding", "output", output, "encoder", encoder.Name, "hardware", encoder.Hardware(), "quality", quality)
	if err := p.runFFmpeg(ctx, st, args, output); err != nil {
		if rmErr := p.remove(output); rmErr != nil {
			log.Warn("could not remove partial output", "output", output, "error", rmErr)
		}
		return res, err
	}
	res.OutputPath = output
	if info, statErr := os.Stat(output); statErr == nil {
		res.OutputSize = info.Size()
	}

	st.enter(task.StageCleaningUp)
	if st.temp != "" {
		temp := st.temp
		st.temp = ""
		if err := p.remove(temp); err != nil {
			return res, st.fail(task.ErrCleanup, fmt.Errorf("remove temp file %s: %w", temp, err))
		}
	}

	st.enter(task.StageDone)
	st.progress(1)
	return res, nil
}

// runFFmpeg runs one ffmpeg pass and checks that it left a non-empty
// artifact behind.
func (p *Pipeline) runFFmpeg(ctx context.Context, st *runState, args []string, artifact string) error {
	p.log.Debug("running ffmpeg", "task_id", st.job.ID, "stage", st.stage, "args", strings.Join(args, " "))
	out, err := p.exec.CombinedOutput(ctx, p.ffmpeg, args...)
	st.record(out)
	if err != nil {
		return st.fail(task.Classify(err), fmt.Errorf("ffmpeg: %w", err))
	}
	info, err := os.Stat(artifact)
	if err != nil || info.Size() == 0 {
		return st.fail(task.ErrExecution, fmt.Errorf("ffmpeg exited cleanly but produced no output at %s", artifact))
	}
	return nil
}

func (p *Pipeline) remove(path string) error {
	if err := p.removeFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
