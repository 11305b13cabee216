package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Nominal frame rates ffprobe reports when a stream has no usable
// constant rate.
var degenerateRates = map[string]bool{
	"1000/1": true,
	"0/0":    true,
}

// Prober reads container and stream metadata with ffprobe.
type Prober struct {
	bin      string
	exec     Executor
	detector *Detector
	hwaccel  bool
	log      hclog.Logger
}

// NewProber returns a Prober. detector may be nil, in which case the
// metadata always reports CPU processing.
func NewProber(bin string, ex Executor, detector *Detector, hwaccel bool, log hclog.Logger) *Prober {
	if ex == nil {
		ex = ExecExecutor{}
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Prober{bin: bin, exec: ex, detector: detector, hwaccel: hwaccel, log: log}
}

// Probe never fails. If ffprobe cannot be launched or its output cannot
// be parsed, every numeric field is zero and NeedsVFRFix is false.
func (p *Prober) Probe(ctx context.Context, path string) VideoMetadata {
	md := VideoMetadata{Path: path, ProcessingMode: ModeCPU}
	if p.detector != nil {
		caps := p.detector.Detect(ctx)
		md.CapabilitySummary = caps.Summary()
		if p.hwaccel && caps.Hardware {
			md.ProcessingMode = ModeGPU
		} else if caps.Hardware {
			md.CapabilitySummary += " (disabled)"
		}
	}

	out, err := p.exec.Output(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		p.log.Warn("ffprobe failed, continuing without metadata", "path", path, "error", err)
		return md
	}

	parsed, err := ParseJSON(out)
	if err != nil {
		p.log.Warn("unreadable ffprobe output, continuing without metadata", "path", path, "error", err)
		return md
	}
	parsed.Path = md.Path
	parsed.CapabilitySummary = md.CapabilitySummary
	parsed.ProcessingMode = md.ProcessingMode
	p.log.Debug("probed", "path", path,
		"duration", parsed.Duration, "width", parsed.Width, "height", parsed.Height,
		"fps", parsed.FPS, "needs_vfr_fix", parsed.NeedsVFRFix)
	return parsed
}

// ParseJSON converts raw ffprobe JSON output into VideoMetadata.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (VideoMetadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return VideoMetadata{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildMetadata(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

func buildMetadata(raw *ffprobeOutput) VideoMetadata {
	md := VideoMetadata{
		Path:     raw.Format.Filename,
		Duration: parseFloat(raw.Format.Duration),
		Size:     parseUint64(raw.Format.Size),
		Bitrate:  parseUint64(raw.Format.BitRate),
	}
	md.EstimatedSize = estimateSize(md.Bitrate, md.Duration)

	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType != "video" {
			continue
		}
		md.Width = s.Width
		md.Height = s.Height
		md.VideoCodec = s.CodecName
		md.FPS = parseRational(s.AvgFrameRate)
		md.NeedsVFRFix = needsVFRFix(s.RFrameRate, s.AvgFrameRate)
		break
	}
	return md
}

func needsVFRFix(nominal, average string) bool {
	return degenerateRates[strings.TrimSpace(nominal)] || strings.TrimSpace(average) == "0/0"
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

// parseRational parses "30000/1001" or "25". A zero denominator yields 0.
func parseRational(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return parseFloat(num)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}

func parseUint64(s string) uint64 {
	n, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
