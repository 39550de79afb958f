package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might interfere
	envVars := []string{
		"EEGD_DEVICE_NAME", "EEGD_ADAPTER", "EEGD_HTTP_PORT",
		"EEGD_NOISE_UV", "EEGD_NOISE_SEED", "EEGD_LOG_FILE",
	}
	for _, k := range envVars {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.DeviceName != "ADS1299_EEG_NUS" {
		t.Errorf("DeviceName = %q, want default", cfg.DeviceName)
	}
	if cfg.Adapter != "hci0" {
		t.Errorf("Adapter = %q, want hci0", cfg.Adapter)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.NoiseAmplitudeUV != 1.2 {
		t.Errorf("NoiseAmplitudeUV = %f, want 1.2", cfg.NoiseAmplitudeUV)
	}
	if cfg.NoiseSeed != 1 {
		t.Errorf("NoiseSeed = %d, want 1", cfg.NoiseSeed)
	}
	if cfg.LogFile != "" {
		t.Errorf("LogFile = %q, want empty default", cfg.LogFile)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EEGD_DEVICE_NAME", "BENCH_EEG")
	t.Setenv("EEGD_ADAPTER", "hci1")
	t.Setenv("EEGD_HTTP_PORT", "9090")
	t.Setenv("EEGD_NOISE_UV", "0.5")
	t.Setenv("EEGD_NOISE_SEED", "42")
	t.Setenv("EEGD_LOG_FILE", "/tmp/eegd.log")

	cfg := Load()

	if cfg.DeviceName != "BENCH_EEG" {
		t.Errorf("DeviceName = %q, want env override", cfg.DeviceName)
	}
	if cfg.Adapter != "hci1" {
		t.Errorf("Adapter = %q, want hci1", cfg.Adapter)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.NoiseAmplitudeUV != 0.5 {
		t.Errorf("NoiseAmplitudeUV = %f, want 0.5", cfg.NoiseAmplitudeUV)
	}
	if cfg.NoiseSeed != 42 {
		t.Errorf("NoiseSeed = %d, want 42", cfg.NoiseSeed)
	}
	if cfg.LogFile != "/tmp/eegd.log" {
		t.Errorf("LogFile = %q, want env override", cfg.LogFile)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("EEGD_HTTP_PORT", "not-a-number")
	cfg := Load()
	if cfg.HTTPPort != 8080 {
		t.Errorf("Invalid int env should fallback to default: got %d, want 8080", cfg.HTTPPort)
	}
}
