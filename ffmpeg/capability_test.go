package ffmpeg

import (
	"context"
	"errors"
	"testing"
	"time"

	"ffcompress/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const softwareEncoders = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libopus              libopus Opus (codec opus)
`

const nvencEncoders = softwareEncoders + ` V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D hevc_nvenc           NVIDIA NVENC hevc encoder (codec hevc)
`

const mixedEncoders = softwareEncoders + ` V....D h264_amf             AMD AMF H.264 Encoder (codec h264)
 V....D h264_qsv             H.264 / AVC / MPEG-4 AVC (Intel Quick Sync Video acceleration) (codec h264)
 V....D hevc_qsv             HEVC (Intel Quick Sync Video acceleration) (codec hevc)
 V....D vp9_qsv              VP9 video (Intel Quick Sync Video acceleration) (codec vp9)
 V....D nvenc                NVIDIA NVENC H.264 encoder (codec h264)
`

func TestParseEncoders(t *testing.T) {
	t.Run("software only", func(t *testing.T) {
		caps := ParseEncoders(softwareEncoders)
		assert.True(t, caps.Probed)
		assert.False(t, caps.Hardware)
		assert.Empty(t, caps.Encoders)
		assert.Equal(t, ModeCPU, caps.Mode())
		assert.Equal(t, "No hardware acceleration (software encoding)", caps.Summary())
	})

	t.Run("nvenc", func(t *testing.T) {
		caps := ParseEncoders(nvencEncoders)
		assert.True(t, caps.Hardware)
		assert.Equal(t, []HardwareEncoder{
			{Vendor: VendorNVENC, Family: profile.FamilyH264, Name: "h264_nvenc"},
			{Vendor: VendorNVENC, Family: profile.FamilyHEVC, Name: "hevc_nvenc"},
		}, caps.Encoders)
		assert.Equal(t, ModeGPU, caps.Mode())
		assert.Equal(t, "NVIDIA NVENC (h264, hevc)", caps.Summary())
	})

	t.Run("several vendors", func(t *testing.T) {
		caps := ParseEncoders(mixedEncoders)
		assert.True(t, caps.Hardware)
		assert.Len(t, caps.Encoders, 4, "bare alias adds no encoder entry")
		assert.Equal(t, "AMD AMF (h264), Intel Quick Sync (h264, hevc, vp9)", caps.Summary())
	})
}

func TestCapabilitiesLookupPreference(t *testing.T) {
	caps := ParseEncoders(mixedEncoders + " V....D h264_nvenc  NVIDIA NVENC H.264 encoder (codec h264)\n")

	h264, ok := caps.Lookup(profile.FamilyH264)
	require.True(t, ok)
	assert.Equal(t, "h264_nvenc", h264.Name)

	vp9, ok := caps.Lookup(profile.FamilyVP9)
	require.True(t, ok)
	assert.Equal(t, "vp9_qsv", vp9.Name)

	_, ok = ParseEncoders(nvencEncoders).Lookup(profile.FamilyVP9)
	assert.False(t, ok)
}

func TestDetector(t *testing.T) {
	t.Run("launch failure means no hardware", func(t *testing.T) {
		fx := &fakeExec{encodersErr: errors.New("exec: \"ffmpeg\": executable file not found in $PATH")}
		caps := NewDetector("ffmpeg", fx, time.Minute, nil).Detect(context.Background())
		assert.False(t, caps.Hardware)
		assert.False(t, caps.Probed)
		assert.Empty(t, caps.Encoders)
		assert.Equal(t, ModeCPU, caps.Mode())
	})

	t.Run("results are cached for the ttl", func(t *testing.T) {
		fx := &fakeExec{encoders: nvencEncoders}
		d := NewDetector("ffmpeg", fx, time.Minute, nil)
		now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		d.now = func() time.Time { return now }

		first := d.Detect(context.Background())
		first.Encoders[0].Name = "mutated"
		second := d.Detect(context.Background())
		assert.Equal(t, "h264_nvenc", second.Encoders[0].Name)
		assert.Len(t, fx.callsTo("ffmpeg"), 1)

		now = now.Add(2 * time.Minute)
		d.Detect(context.Background())
		assert.Len(t, fx.callsTo("ffmpeg"), 2)
		assert.Equal(t, []string{"-hide_banner", "-encoders"}, fx.callsTo("ffmpeg")[0])
	})

	t.Run("failures are not cached", func(t *testing.T) {
		fx := &fakeExec{encodersErr: errors.New("boom")}
		d := NewDetector("ffmpeg", fx, time.Minute, nil)
		d.Detect(context.Background())
		fx.encodersErr = nil
		fx.encoders = nvencEncoders
		assert.True(t, d.Detect(context.Background()).Hardware)
	})

	t.Run("zero ttl disables caching", func(t *testing.T) {
		fx := &fakeExec{encoders: softwareEncoders}
		d := NewDetector("ffmpeg", fx, 0, nil)
		d.Detect(context.Background())
		d.Detect(context.Background())
		assert.Len(t, fx.callsTo("ffmpeg"), 2)
	})
}
