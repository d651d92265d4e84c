package amcodec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("", missingEnvFile(t))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("LoadSettings() = %+v, want defaults %+v", s, DefaultSettings())
	}
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amcodec.yaml")
	conf := "min_width_mpeg2: 480\nlibrary_path: /opt/lib/libmedia_amcodec.so\nlog_level: warn\n"
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path, missingEnvFile(t))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.MinWidthMPEG2 != 480 || s.LibraryPath != "/opt/lib/libmedia_amcodec.so" || s.LogLevel != "warn" {
		t.Errorf("LoadSettings() = %+v", s)
	}
	if !s.UseAMCodec || s.SysfsRoot != "/" {
		t.Errorf("defaults lost: %+v", s)
	}
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amcodec.toml")
	if err := os.WriteFile(path, []byte("min_width_h264 = 640\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AMCODEC_MIN_WIDTH_H264", "720")
	t.Setenv("AMCODEC_USE_AMCODEC", "false")

	s, err := LoadSettings(path, missingEnvFile(t))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.MinWidthH264 != 720 {
		t.Errorf("MinWidthH264 = %d, want 720", s.MinWidthH264)
	}
	if s.UseAMCodec {
		t.Error("UseAMCodec = true, want false from env")
	}
}

func TestLoadSettings_DotEnv(t *testing.T) {
	// Registers cleanup; godotenv only sets unset variables.
	t.Setenv("AMCODEC_SYSFS_ROOT", "")
	os.Unsetenv("AMCODEC_SYSFS_ROOT")

	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("AMCODEC_SYSFS_ROOT=/tmp/fake-sysfs\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings("", envFile)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.SysfsRoot != "/tmp/fake-sysfs" {
		t.Errorf("SysfsRoot = %q, want /tmp/fake-sysfs", s.SysfsRoot)
	}
}

func TestLoadSettings_MissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	s, err := LoadSettings(path, missingEnvFile(t))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("LoadSettings() = %+v, want defaults", s)
	}
}

func TestLoadSettings_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("min_width_h264: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path, missingEnvFile(t)); err == nil {
		t.Error("LoadSettings() with malformed file succeeded")
	}
}

func TestSettings_Logger(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}

	for _, tt := range tests {
		s := DefaultSettings()
		s.LogLevel = tt.level
		if got := s.Logger().GetLevel(); got != tt.want {
			t.Errorf("Logger() level for %q = %v, want %v", tt.level, got, tt.want)
		}
	}
}
