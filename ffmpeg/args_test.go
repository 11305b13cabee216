package ffmpeg

import (
	"testing"

	"ffcompress/profile"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArgs(t *testing.T) {
	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-y", "-i", "in.mov",
		"-vf", "fps=25",
		"-c:v", "libx264", "-crf", "18", "-preset", "medium",
		"-c:a", "copy", "in_temp_fixed_cfr.mov",
	}, NormalizeArgs("in.mov", "in_temp_fixed_cfr.mov"))

	webm := NormalizeArgs("in.webm", "in_temp_fixed_cfr.webm")
	assert.Contains(t, webm, "libvpx-vp9")
	assert.NotContains(t, webm, "libx264")
}

func TestSelectEncoder(t *testing.T) {
	nv := ParseEncoders(nvencEncoders)
	qsv := ParseEncoders(mixedEncoders)

	assert.Equal(t, Encoder{Name: "h264_nvenc", Vendor: VendorNVENC}, SelectEncoder(profile.MP4, nv, true))
	assert.Equal(t, Encoder{Name: "libx264"}, SelectEncoder(profile.MP4, nv, false))
	assert.Equal(t, Encoder{Name: "libvpx-vp9"}, SelectEncoder(profile.WebM, nv, true), "no vp9 hardware encoder")
	assert.Equal(t, Encoder{Name: "vp9_qsv", Vendor: VendorQSV}, SelectEncoder(profile.WebM, qsv, true))
	assert.Equal(t, Encoder{Name: "h264_amf", Vendor: VendorAMF}, SelectEncoder(profile.MKV, qsv, true))
	assert.Equal(t, Encoder{Name: "libx264"}, SelectEncoder(profile.MKV, Capabilities{}, true))
	assert.False(t, SelectEncoder(profile.MKV, Capabilities{}, true).Hardware())
}

func TestEncodeArgs(t *testing.T) {
	t.Run("software mp4", func(t *testing.T) {
		args := EncodeArgs(EncodeOptions{
			Input: "in.mp4", Output: "in_compressed.mp4",
			Profile: profile.MP4, Quality: 23, Encoder: Encoder{Name: "libx264"},
		})
		assert.Equal(t, []string{
			"-hide_banner", "-nostdin", "-y", "-i", "in.mp4",
			"-c:v", "libx264", "-crf", "23", "-preset", "medium",
			"-pix_fmt", "yuv420p", "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
			"-c:a", "aac", "-b:a", "128k",
			"-movflags", "+faststart",
			"in_compressed.mp4",
		}, args)
	})

	t.Run("software webm", func(t *testing.T) {
		args := EncodeArgs(EncodeOptions{
			Input: "in.mkv", Output: "in_compressed.webm",
			Profile: profile.WebM, Quality: 31, Encoder: Encoder{Name: "libvpx-vp9"},
		})
		assert.Equal(t, []string{
			"-hide_banner", "-nostdin", "-y", "-i", "in.mkv",
			"-c:v", "libvpx-vp9", "-crf", "31", "-b:v", "0", "-deadline", "good", "-cpu-used", "2",
			"-c:a", "libopus", "-b:a", "128k",
			"in_compressed.webm",
		}, args)
	})

	t.Run("mkv has no faststart", func(t *testing.T) {
		args := EncodeArgs(EncodeOptions{Input: "a", Output: "b.mkv", Profile: profile.MKV, Quality: 20, Encoder: Encoder{Name: "libx264"}})
		assert.NotContains(t, args, "-movflags")
		assert.Contains(t, args, "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	})

	t.Run("hardware encoders", func(t *testing.T) {
		nv := EncodeArgs(EncodeOptions{Input: "a", Output: "b.mp4", Profile: profile.MP4, Quality: 25, Encoder: Encoder{Name: "h264_nvenc", Vendor: VendorNVENC}})
		assert.Subset(t, nv, []string{"h264_nvenc", "-cq", "25", "-preset", "p5"})
		assert.NotContains(t, nv, "-vf", "padding is for software encodes")

		amf := EncodeArgs(EncodeOptions{Input: "a", Output: "b.mp4", Profile: profile.MP4, Quality: 25, Encoder: Encoder{Name: "h264_amf", Vendor: VendorAMF}})
		assert.Subset(t, amf, []string{"h264_amf", "-qp_i", "-qp_p", "cqp"})

		qsv := EncodeArgs(EncodeOptions{Input: "a", Output: "b.webm", Profile: profile.WebM, Quality: 25, Encoder: Encoder{Name: "vp9_qsv", Vendor: VendorQSV}})
		assert.Subset(t, qsv, []string{"vp9_qsv", "-global_quality", "libopus"})
	})

	t.Run("extra args precede the output", func(t *testing.T) {
		args := EncodeArgs(EncodeOptions{
			Input: "a", Output: "b.mkv", Profile: profile.MKV, Quality: 20,
			Encoder: Encoder{Name: "libx264"}, Extra: []string{"-tune", "film"},
		})
		n := len(args)
		assert.Equal(t, []string{"-tune", "film", "b.mkv"}, args[n-3:])
	})
}
