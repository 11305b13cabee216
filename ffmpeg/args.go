package ffmpeg

import (
	"strconv"
	"strings"

	"ffcompress/profile"
)

const (
	normalizeFPS     = 25
	normalizeQuality = 18
	audioBitrate     = "128k"
	// Software H.264 needs even frame dimensions.
	evenPadFilter = "pad=ceil(iw/2)*2:ceil(ih/2)*2"
)

// Encoder is the video encoder chosen for one job. Vendor is empty for
// software encoders.
type Encoder struct {
	Name   string `json:"name"`
	Vendor Vendor `json:"vendor,omitempty"`
}

func (e Encoder) Hardware() bool {
	return e.Vendor != ""
}

// SelectEncoder picks the hardware encoder for the profile's codec family
// when one was detected and hwaccel is on, and the software codec otherwise.
func SelectEncoder(p profile.Profile, caps Capabilities, hwaccel bool) Encoder {
	if hwaccel && caps.Hardware {
		if hw, ok := caps.Lookup(p.Family()); ok {
			return Encoder{Name: hw.Name, Vendor: hw.Vendor}
		}
	}
	return Encoder{Name: p.VideoCodec()}
}

// NormalizeArgs builds the constant-frame-rate pass. Quality is fixed and
// audio is copied untouched. The video codec follows the temp container.
func NormalizeArgs(input, output string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", input}
	args = append(args, "-vf", "fps="+strconv.Itoa(normalizeFPS))
	if strings.EqualFold(fileExt(output), "webm") {
		args = append(args, "-c:v", "libvpx-vp9", "-crf", strconv.Itoa(normalizeQuality), "-b:v", "0")
	} else {
		args = append(args, "-c:v", "libx264", "-crf", strconv.Itoa(normalizeQuality), "-preset", "medium")
	}
	args = append(args, "-c:a", "copy", output)
	return args
}

// EncodeOptions describes one encode invocation.
type EncodeOptions struct {
	Input   string
	Output  string
	Profile profile.Profile
	Quality int
	Encoder Encoder
	// Extra arguments are inserted right before the output path.
	Extra []string
}

// EncodeArgs builds the final encode invocation.
func EncodeArgs(o EncodeOptions) []string {
	q := strconv.Itoa(o.Quality)
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", o.Input}

	// Video
	switch o.Encoder.Vendor {
	case VendorNVENC:
		args = append(args, "-c:v", o.Encoder.Name, "-rc", "vbr", "-cq", q, "-b:v", "0", "-preset", "p5")
	case VendorAMF:
		args = append(args, "-c:v", o.Encoder.Name, "-rc", "cqp", "-qp_i", q, "-qp_p", q)
	case VendorQSV:
		args = append(args, "-c:v", o.Encoder.Name, "-global_quality", q, "-preset", "medium")
	default:
		if o.Profile.Family() == profile.FamilyVP9 {
			args = append(args, "-c:v", o.Encoder.Name, "-crf", q, "-b:v", "0", "-deadline", "good", "-cpu-used", "2")
		} else {
			args = append(args, "-c:v", o.Encoder.Name, "-crf", q, "-preset", "medium",
				"-pix_fmt", "yuv420p", "-vf", evenPadFilter)
		}
	}

	// Audio
	args = append(args, "-c:a", o.Profile.AudioCodec(), "-b:a", audioBitrate)

	// Container
	if o.Profile == profile.MP4 {
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args, o.Extra...)
	return append(args, o.Output)
}

func fileExt(path string) string {
	_, _, ext := splitName(path)
	return strings.TrimPrefix(ext, ".")
}
