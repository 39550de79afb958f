package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/biosig-match/eeg-dummy-firmware/bluetooth"
	"github.com/biosig-match/eeg-dummy-firmware/config"
	"github.com/biosig-match/eeg-dummy-firmware/eeg"
	"github.com/biosig-match/eeg-dummy-firmware/server"
	"github.com/biosig-match/eeg-dummy-firmware/utils"
)

func setupLogging(logFile string) func() {
	if logFile == "" {
		return func() {}
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		log.Printf("Warning: Could not create log directory: %v", err)
		return func() {}
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("Warning: Could not open log file: %v", err)
		return func() {}
	}
	// Log to both file and stdout
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.Printf("Logging to %s", logFile)
	return func() { f.Close() }
}

func main() {
	cfg := config.Load()
	closeLog := setupLogging(cfg.LogFile)
	defer closeLog()

	log.Println("--- ADS1299-compatible dummy EEG streamer ---")

	wsHub := utils.NewWebSocketHub()

	// Retry transport initialization: BlueZ may still be coming up at boot.
	var transport *bluetooth.Transport
	var err error
	for retries := 0; retries < 10; retries++ {
		transport, err = bluetooth.NewTransport(cfg.DeviceName, cfg.Adapter)
		if err == nil {
			log.Printf("BLE transport initialized successfully on attempt %d", retries+1)
			break
		}
		log.Printf("Failed to initialize BLE transport (attempt %d/10): %v", retries+1, err)
		if retries < 9 {
			time.Sleep(3 * time.Second)
		}
	}
	if err != nil {
		log.Fatalf("Could not initialize BLE transport: %v", err)
	}

	noise := eeg.NewSeededNoise(cfg.NoiseSeed)
	synth := eeg.NewWaveformSynthesizer(eeg.DefaultChannelProfiles(), cfg.NoiseAmplitudeUV, noise)
	engine := eeg.NewEngine(transport, eeg.NewSampleClock(), synth, eeg.NewStimulusController(), wsHub)
	transport.BindEngine(engine)

	engine.Start()
	defer engine.Stop()

	tickStop := make(chan struct{})
	defer close(tickStop)
	go engine.Clock().RunTicker(eeg.SampleRateHz, tickStop)
	log.Printf("Sampling timer started for %d Hz", eeg.SampleRateHz)

	if err := transport.Start(); err != nil {
		log.Fatalf("Could not start BLE transport: %v", err)
	}
	defer transport.Stop()

	srv := server.NewServer(engine, wsHub, cfg.HTTPPort)
	srv.Start()
}
