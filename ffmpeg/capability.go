package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ffcompress/profile"

	"github.com/hashicorp/go-hclog"
)

// Vendor is a hardware acceleration backend, named by the tag ffmpeg
// uses in its encoder names.
type Vendor string

const (
	VendorNVENC Vendor = "nvenc"
	VendorAMF   Vendor = "amf"
	VendorQSV   Vendor = "qsv"
)

// vendorOrder is also the selection preference.
var vendorOrder = []Vendor{VendorNVENC, VendorAMF, VendorQSV}

var vendorLabels = map[Vendor]string{
	VendorNVENC: "NVIDIA NVENC",
	VendorAMF:   "AMD AMF",
	VendorQSV:   "Intel Quick Sync",
}

func (v Vendor) Label() string {
	if l, ok := vendorLabels[v]; ok {
		return l
	}
	return string(v)
}

// HardwareEncoder is one hardware encoder reported by ffmpeg.
type HardwareEncoder struct {
	Vendor Vendor         `json:"vendor"`
	Family profile.Family `json:"family"`
	Name   string         `json:"name"`
}

// Capabilities is the result of encoder detection.
type Capabilities struct {
	// Probed is false when ffmpeg could not be asked at all.
	Probed   bool              `json:"probed"`
	Hardware bool              `json:"hardware"`
	Encoders []HardwareEncoder `json:"encoders"`
}

// Lookup returns the preferred hardware encoder for a codec family.
func (c Capabilities) Lookup(family profile.Family) (HardwareEncoder, bool) {
	for _, v := range vendorOrder {
		for _, e := range c.Encoders {
			if e.Vendor == v && e.Family == family {
				return e, true
			}
		}
	}
	return HardwareEncoder{}, false
}

// Mode is the processing-mode label shown to users.
func (c Capabilities) Mode() string {
	if c.Hardware {
		return ModeGPU
	}
	return ModeCPU
}

// Summary describes the detected vendors, e.g.
// "NVIDIA NVENC (h264, hevc), Intel Quick Sync (h264)".
func (c Capabilities) Summary() string {
	if !c.Probed {
		return "Hardware detection unavailable (software encoding)"
	}
	if !c.Hardware {
		return "No hardware acceleration (software encoding)"
	}
	var parts []string
	for _, v := range vendorOrder {
		var families []string
		for _, e := range c.Encoders {
			if e.Vendor == v {
				families = append(families, string(e.Family))
			}
		}
		if len(families) > 0 {
			parts = append(parts, fmt.Sprintf("%s (%s)", v.Label(), strings.Join(families, ", ")))
		}
	}
	if len(parts) == 0 {
		return "Hardware acceleration available"
	}
	return strings.Join(parts, ", ")
}

func (c Capabilities) clone() Capabilities {
	c.Encoders = append([]HardwareEncoder(nil), c.Encoders...)
	return c
}

// ParseEncoders classifies `ffmpeg -encoders` output. Only the encoder
// name column is matched against the vendor tags.
func ParseEncoders(out string) Capabilities {
	caps := Capabilities{Probed: true}
	seen := map[string]bool{}

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		for _, v := range vendorOrder {
			if !strings.Contains(name, string(v)) {
				continue
			}
			caps.Hardware = true
			family := encoderFamily(name, v)
			if family != "" && !seen[name] {
				seen[name] = true
				caps.Encoders = append(caps.Encoders, HardwareEncoder{Vendor: v, Family: family, Name: name})
			}
			break
		}
	}
	return caps
}

// encoderFamily extracts the codec part of names like "hevc_nvenc" or
// the legacy "nvenc_h264". Bare aliases such as "nvenc" have none.
func encoderFamily(name string, v Vendor) profile.Family {
	for _, part := range strings.Split(name, "_") {
		if part != "" && part != string(v) {
			return profile.Family(part)
		}
	}
	return ""
}

// Detector runs `ffmpeg -encoders` and caches successful results.
type Detector struct {
	bin  string
	exec Executor
	ttl  time.Duration
	log  hclog.Logger
	now  func() time.Time

	mu       sync.Mutex
	cached   *Capabilities
	cachedAt time.Time
}

// NewDetector returns a Detector. A ttl of zero disables caching.
func NewDetector(bin string, ex Executor, ttl time.Duration, log hclog.Logger) *Detector {
	if ex == nil {
		ex = ExecExecutor{}
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Detector{bin: bin, exec: ex, ttl: ttl, log: log, now: time.Now}
}

// Detect never fails: if ffmpeg cannot be run it reports no hardware.
func (d *Detector) Detect(ctx context.Context) Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && d.ttl > 0 && d.now().Sub(d.cachedAt) < d.ttl {
		return d.cached.clone()
	}

	out, err := d.exec.Output(ctx, d.bin, "-hide_banner", "-encoders")
	if err != nil {
		d.log.Warn("encoder detection failed, assuming software only", "error", err)
		return Capabilities{}
	}

	caps := ParseEncoders(string(out))
	d.log.Info("detected encoders", "hardware", caps.Hardware, "summary", caps.Summary())
	d.cached = &caps
	d.cachedAt = d.now()
	return caps.clone()
}
