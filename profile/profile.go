// Package profile is the fixed catalog of output containers and the codec
// and quality defaults attached to each of them.
package profile

import (
	"fmt"
	"strings"
)

// Profile is an output container choice.
type Profile string

const (
	MP4  Profile = "mp4"
	WebM Profile = "webm"
	MKV  Profile = "mkv"
)

// Default is the profile used when nothing else was chosen.
const Default = MP4

// Family groups video codecs that share a hardware encoder naming scheme.
type Family string

const (
	FamilyH264 Family = "h264"
	FamilyHEVC Family = "hevc"
	FamilyVP9  Family = "vp9"
)

// Range is an inclusive quality-parameter range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether q lies inside the range.
func (r Range) Contains(q int) bool {
	return q >= r.Min && q <= r.Max
}

// Clamp pins q to the range bounds.
func (r Range) Clamp(q int) int {
	if q < r.Min {
		return r.Min
	}
	if q > r.Max {
		return r.Max
	}
	return q
}

// Spec is everything the encoder needs to know about a profile.
type Spec struct {
	Profile        Profile `json:"profile"`
	Extension      string  `json:"extension"`
	VideoCodec     string  `json:"videoCodec"`
	AudioCodec     string  `json:"audioCodec"`
	Family         Family  `json:"family"`
	DefaultQuality int     `json:"defaultQuality"`
	QualityRange   Range   `json:"qualityRange"`
}

// Used when a lookup misses. The profile set is closed, so these only
// matter for zero values and hand-built Profile strings.
const (
	fallbackQuality = 23
)

var fallbackRange = Range{Min: 18, Max: 35}

var catalog = map[Profile]Spec{
	MP4: {
		Profile:        MP4,
		Extension:      "mp4",
		VideoCodec:     "libx264",
		AudioCodec:     "aac",
		Family:         FamilyH264,
		DefaultQuality: 23,
		QualityRange:   Range{Min: 18, Max: 35},
	},
	WebM: {
		Profile:        WebM,
		Extension:      "webm",
		VideoCodec:     "libvpx-vp9",
		AudioCodec:     "libopus",
		Family:         FamilyVP9,
		DefaultQuality: 28,
		QualityRange:   Range{Min: 15, Max: 50},
	},
	MKV: {
		Profile:        MKV,
		Extension:      "mkv",
		VideoCodec:     "libx264",
		AudioCodec:     "aac",
		Family:         FamilyH264,
		DefaultQuality: 23,
		QualityRange:   Range{Min: 18, Max: 35},
	},
}

// All returns every profile in display order.
func All() []Profile {
	return []Profile{MP4, WebM, MKV}
}

// Parse maps a user string ("MP4", "webm", ".mkv") onto a Profile.
func Parse(s string) (Profile, error) {
	p := Profile(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	if _, ok := catalog[p]; !ok {
		return "", fmt.Errorf("unknown profile %q (use mp4, webm or mkv)", s)
	}
	return p, nil
}

// Valid reports whether p belongs to the catalog.
func (p Profile) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// Lookup returns the catalog entry for p.
func Lookup(p Profile) (Spec, bool) {
	s, ok := catalog[p]
	return s, ok
}

// Extension returns the file extension without the leading dot.
func (p Profile) Extension() string {
	if s, ok := catalog[p]; ok {
		return s.Extension
	}
	return string(Default)
}

// VideoCodec returns the software video encoder name.
func (p Profile) VideoCodec() string {
	if s, ok := catalog[p]; ok {
		return s.VideoCodec
	}
	return catalog[Default].VideoCodec
}

// AudioCodec returns the audio encoder name.
func (p Profile) AudioCodec() string {
	if s, ok := catalog[p]; ok {
		return s.AudioCodec
	}
	return catalog[Default].AudioCodec
}

// Family returns the video codec family.
func (p Profile) Family() Family {
	if s, ok := catalog[p]; ok {
		return s.Family
	}
	return FamilyH264
}

// DefaultQuality returns the recommended CRF for p.
func (p Profile) DefaultQuality() int {
	if s, ok := catalog[p]; ok {
		return s.DefaultQuality
	}
	return fallbackQuality
}

// QualityRange returns the accepted CRF range for p.
func (p Profile) QualityRange() Range {
	if s, ok := catalog[p]; ok {
		return s.QualityRange
	}
	return fallbackRange
}

// ResolveQuality returns q when it is set, otherwise the profile default.
func (p Profile) ResolveQuality(q int) int {
	if q == 0 {
		return p.DefaultQuality()
	}
	return q
}

func (p Profile) String() string {
	return strings.ToUpper(string(p))
}
