package amcodec

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Settings are the user-facing toggles consulted by Decoder.Open.
type Settings struct {
	// UseAMCodec enables hardware decode. When false every Open fails with
	// ErrDisabled.
	UseAMCodec bool `mapstructure:"use_amcodec"`

	// Streams at or below these widths fall back to software decode.
	MinWidthMPEG2 int `mapstructure:"min_width_mpeg2"`
	MinWidthH264  int `mapstructure:"min_width_h264"`
	MinWidthMPEG4 int `mapstructure:"min_width_mpeg4"`

	LibraryPath string `mapstructure:"library_path"` // Explicit libmedia_amcodec path
	SysfsRoot   string `mapstructure:"sysfs_root"`   // Prefix for /dev and /sys probes
	LogLevel    string `mapstructure:"log_level"`
}

// DefaultSettings enables hardware decode for every resolution.
func DefaultSettings() Settings {
	return Settings{
		UseAMCodec: true,
		SysfsRoot:  "/",
		LogLevel:   "info",
	}
}

const envPrefix = "AMCODEC"

// LoadSettings reads settings from defaults, the optional config file at
// path (TOML, YAML or JSON by extension) and AMCODEC_* environment
// variables, in increasing priority. envFiles are loaded into the process
// environment first; missing ones are skipped. With no envFiles, ".env" is
// tried.
func LoadSettings(path string, envFiles ...string) (Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Settings{}, fmt.Errorf("amcodec: load %s: %w", f, err)
		}
	}

	v := viper.New()
	def := DefaultSettings()
	v.SetDefault("use_amcodec", def.UseAMCodec)
	v.SetDefault("min_width_mpeg2", def.MinWidthMPEG2)
	v.SetDefault("min_width_h264", def.MinWidthH264)
	v.SetDefault("min_width_mpeg4", def.MinWidthMPEG4)
	v.SetDefault("library_path", def.LibraryPath)
	v.SetDefault("sysfs_root", def.SysfsRoot)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Settings{}, fmt.Errorf("amcodec: read config %s: %w", path, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("amcodec: decode settings: %w", err)
	}
	return s, nil
}

// Logger returns a logrus logger at the configured level. Unknown levels
// fall back to info.
func (s Settings) Logger() *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}
