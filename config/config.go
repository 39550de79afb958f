package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// BLE identity
	DeviceName string // advertised local name
	Adapter    string // BlueZ adapter, e.g. hci0

	// Monitoring server
	HTTPPort int

	// Signal synthesis
	NoiseAmplitudeUV float64 // background noise amplitude, microvolts
	NoiseSeed        int64   // RNG seed; fixed for reproducible output

	// Logging
	LogFile string // empty disables file logging
}

// Load reads configuration from environment variables with defaults matching
// the reference firmware.
func Load() Config {
	return Config{
		DeviceName: envStr("EEGD_DEVICE_NAME", "ADS1299_EEG_NUS"),
		Adapter:    envStr("EEGD_ADAPTER", "hci0"),

		HTTPPort: envInt("EEGD_HTTP_PORT", 8080),

		NoiseAmplitudeUV: envFloat("EEGD_NOISE_UV", 1.2),
		NoiseSeed:        int64(envInt("EEGD_NOISE_SEED", 1)),

		LogFile: envStr("EEGD_LOG_FILE", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
