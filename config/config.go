package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"ffcompress/profile"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	FFBin            string        `mapstructure:"FF_BIN"`
	FFprobeBin       string        `mapstructure:"FFPROBE_BIN"`
	ToolsDir         string        `mapstructure:"TOOLS_DIR"`
	MaxInputSize     int64         `mapstructure:"MAX_INPUT_SIZE"`
	QueueSize        int           `mapstructure:"QUEUE_SIZE"`
	HistoryLifetime  time.Duration `mapstructure:"HISTORY_LIFETIME"`
	CapabilityCache  time.Duration `mapstructure:"CAPABILITY_CACHE"`
	HWAccel          bool          `mapstructure:"HWACCEL"`
	DefaultProfile   string        `mapstructure:"DEFAULT_PROFILE"`
	DefaultQuality   int           `mapstructure:"DEFAULT_QUALITY"`
	ForceFix         bool          `mapstructure:"FORCE_FIX"`
	WatchDir         string        `mapstructure:"WATCH_DIR"`
	ThrottleCPU      float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`
	AuthEnable       bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey          string        `mapstructure:"AUTH_KEY"`
	Port             string        `mapstructure:"PORT"`
	BaseURL          string        `mapstructure:"BASE"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogJSON          bool          `mapstructure:"LOG_JSON"`

	// Files holds positional command-line arguments. Non-empty means batch mode.
	Files []string `mapstructure:"-"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

// flag name -> viper key
var flagKeys = map[string]string{
	"profile":   "DEFAULT_PROFILE",
	"quality":   "DEFAULT_QUALITY",
	"force-fix": "FORCE_FIX",
	"watch":     "WATCH_DIR",
	"port":      "PORT",
	"log-level": "LOG_LEVEL",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ffcompress", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.String("profile", "mp4", "output profile: mp4, webm or mkv")
	fs.Int("quality", 0, "quality parameter (0 = profile default)")
	fs.Bool("force-fix", false, "always normalize the frame rate before encoding")
	fs.String("watch", "", "directory to watch for new videos")
	fs.String("port", "8080", "HTTP listen port")
	fs.String("log-level", "info", "trace, debug, info, warn or error")
	return fs
}

// Load reads defaults, the optional config file, FFCOMPRESS_* environment
// variables and finally the command-line args, in increasing priority.
func Load(args ...string) (*Config, error) {
	vp := viper.New()

	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("TOOLS_DIR", "ffmpeg")
	vp.SetDefault("MAX_INPUT_SIZE", "64GB")
	vp.SetDefault("QUEUE_SIZE", 100)
	vp.SetDefault("HISTORY_LIFETIME", "24h")
	vp.SetDefault("CAPABILITY_CACHE", "5m")
	vp.SetDefault("HWACCEL", true)
	vp.SetDefault("DEFAULT_PROFILE", string(profile.Default))
	vp.SetDefault("DEFAULT_QUALITY", 0)
	vp.SetDefault("FORCE_FIX", false)
	vp.SetDefault("WATCH_DIR", "")
	vp.SetDefault("THROTTLE_CPU", 0.0)
	vp.SetDefault("THROTTLE_FREEMEM", "0")
	vp.SetDefault("THROTTLE_FREEDISK", "0")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_JSON", false)

	vp.SetConfigName("ffcompress_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/ffcompress/")

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	vp.SetEnvPrefix("FFCOMPRESS")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vp.AutomaticEnv()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for name, key := range flagKeys {
		if err := vp.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}
	cfg.Files = fs.Args()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the job defaults against the profile catalog.
func (c *Config) Validate() error {
	p, err := profile.Parse(c.DefaultProfile)
	if err != nil {
		return fmt.Errorf("DEFAULT_PROFILE: %w", err)
	}
	if c.DefaultQuality != 0 && !p.QualityRange().Contains(c.DefaultQuality) {
		r := p.QualityRange()
		return fmt.Errorf("DEFAULT_QUALITY %d outside %s range %d-%d", c.DefaultQuality, p, r.Min, r.Max)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be positive, got %d", c.QueueSize)
	}
	return nil
}

// Profile returns the parsed default profile. Validate has already vetted it.
func (c *Config) Profile() profile.Profile {
	p, err := profile.Parse(c.DefaultProfile)
	if err != nil {
		return profile.Default
	}
	return p
}
