package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbe1080p = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "aac",
      "codec_type": "audio"
    },
    {
      "index": 1,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "r_frame_rate": "24/1",
      "avg_frame_rate": "24/1"
    }
  ],
  "format": {
    "filename": "/videos/input.mp4",
    "duration": "120.500000",
    "size": "75312500",
    "bit_rate": "5000000"
  }
}`

func probeJSON(rFrameRate, avgFrameRate string) string {
	return `{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,` +
		`"r_frame_rate":"` + rFrameRate + `","avg_frame_rate":"` + avgFrameRate + `"}],` +
		`"format":{"duration":"10.0","size":"1000","bit_rate":"800000"}}`
}

func TestParseJSON(t *testing.T) {
	md, err := ParseJSON([]byte(sampleProbe1080p))
	require.NoError(t, err)

	assert.Equal(t, "/videos/input.mp4", md.Path)
	assert.InDelta(t, 120.5, md.Duration, 1e-9)
	assert.Equal(t, uint64(75312500), md.Size)
	assert.Equal(t, uint64(5000000), md.Bitrate)
	assert.Equal(t, 1920, md.Width)
	assert.Equal(t, 1080, md.Height)
	assert.Equal(t, "h264", md.VideoCodec)
	assert.InDelta(t, 24.0, md.FPS, 1e-9)
	assert.False(t, md.NeedsVFRFix)
	assert.InDelta(t, 5000000*0.7*120.5/8, float64(md.EstimatedSize), 1)
}

func TestParseJSONFrameRates(t *testing.T) {
	cases := []struct {
		name     string
		r, avg   string
		needsFix bool
		fps      float64
	}{
		{"ntsc", "30000/1001", "30000/1001", false, 29.97},
		{"sentinel nominal rate", "1000/1", "24/1", true, 24},
		{"zero nominal rate", "0/0", "25/1", true, 25},
		{"zero average rate", "25/1", "0/0", true, 0},
		{"plain number", "25", "25", false, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			md, err := ParseJSON([]byte(probeJSON(tc.r, tc.avg)))
			require.NoError(t, err)
			assert.Equal(t, tc.needsFix, md.NeedsVFRFix)
			assert.InDelta(t, tc.fps, md.FPS, 0.01)
		})
	}
}

func TestParseJSONWithoutVideo(t *testing.T) {
	md, err := ParseJSON([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3.5"}}`))
	require.NoError(t, err)
	assert.Zero(t, md.Width)
	assert.Zero(t, md.FPS)
	assert.False(t, md.NeedsVFRFix)
	assert.InDelta(t, 3.5, md.Duration, 1e-9)
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestEstimatedMB(t *testing.T) {
	assert.Zero(t, VideoMetadata{Duration: 100}.EstimatedMB())

	md := VideoMetadata{Bitrate: 8_000_000, Duration: 60}
	assert.InDelta(t, 8_000_000*0.7*60/8/1024/1024, md.EstimatedMB(), 1e-9)
	assert.Zero(t, estimateSize(0, 60))
}

func TestProbeIsBestEffort(t *testing.T) {
	t.Run("launch failure yields zero metadata", func(t *testing.T) {
		fx := &fakeExec{probeErr: &exec.Error{Name: "ffprobe", Err: exec.ErrNotFound}}
		md := NewProber("ffprobe", fx, nil, true, nil).Probe(context.Background(), "/videos/a.mp4")

		assert.Equal(t, "/videos/a.mp4", md.Path)
		assert.Zero(t, md.Duration)
		assert.Zero(t, md.Size)
		assert.Zero(t, md.Bitrate)
		assert.Zero(t, md.Width)
		assert.Zero(t, md.Height)
		assert.Zero(t, md.FPS)
		assert.False(t, md.NeedsVFRFix)
		assert.Equal(t, ModeCPU, md.ProcessingMode)
	})

	t.Run("garbage output yields zero metadata", func(t *testing.T) {
		fx := &fakeExec{probeOut: "{truncated"}
		md := NewProber("ffprobe", fx, nil, true, nil).Probe(context.Background(), "a.mp4")
		assert.Zero(t, md.Duration)
		assert.False(t, md.NeedsVFRFix)
	})

	t.Run("invocation and capability fields", func(t *testing.T) {
		fx := &fakeExec{probeOut: sampleProbe1080p, encoders: nvencEncoders}
		det := NewDetector("ffmpeg", fx, 0, nil)
		md := NewProber("ffprobe", fx, det, true, nil).Probe(context.Background(), "/videos/input.mp4")

		assert.Equal(t, 1920, md.Width)
		assert.Equal(t, ModeGPU, md.ProcessingMode)
		assert.Contains(t, md.CapabilitySummary, "NVIDIA NVENC")

		probeCall := fx.callsTo("ffprobe")
		require.Len(t, probeCall, 1)
		assert.Equal(t, []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", "/videos/input.mp4"}, probeCall[0])
	})

	t.Run("hardware present but disabled", func(t *testing.T) {
		fx := &fakeExec{probeErr: errors.New("exit status 1"), encoders: nvencEncoders}
		det := NewDetector("ffmpeg", fx, 0, nil)
		md := NewProber("ffprobe", fx, det, false, nil).Probe(context.Background(), "a.mp4")
		assert.Equal(t, ModeCPU, md.ProcessingMode)
		assert.Contains(t, md.CapabilitySummary, "(disabled)")
	})
}
