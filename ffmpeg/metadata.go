package ffmpeg

// Expected output size as a fraction of the input stream size.
const compressionRatio = 0.7

const (
	ModeGPU = "GPU"
	ModeCPU = "CPU"
)

// VideoMetadata is a read-only snapshot of one input file at probe time.
// Numeric fields are zero when probing was not possible.
type VideoMetadata struct {
	Path              string  `json:"path"`
	Duration          float64 `json:"duration"`
	Size              uint64  `json:"size"`
	Bitrate           uint64  `json:"bitrate"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	FPS               float64 `json:"fps"`
	VideoCodec        string  `json:"videoCodec,omitempty"`
	NeedsVFRFix       bool    `json:"needsVfrFix"`
	EstimatedSize     uint64  `json:"estimatedSize"`
	CapabilitySummary string  `json:"capabilitySummary"`
	ProcessingMode    string  `json:"processingMode"`
}

// EstimatedMB is the estimated compressed size in megabytes.
func (m VideoMetadata) EstimatedMB() float64 {
	return float64(m.Bitrate) * compressionRatio * m.Duration / 8 / 1024 / 1024
}

func estimateSize(bitrate uint64, duration float64) uint64 {
	if bitrate == 0 || duration <= 0 {
		return 0
	}
	return uint64(float64(bitrate) * compressionRatio * duration / 8)
}
