package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/keathmilligan/flowstt-core/pkg/audio"
	"github.com/keathmilligan/flowstt-core/pkg/capture"
	"github.com/keathmilligan/flowstt-core/pkg/config"
	"github.com/keathmilligan/flowstt-core/pkg/logging"
	"github.com/keathmilligan/flowstt-core/pkg/monitor"
	"github.com/keathmilligan/flowstt-core/pkg/pipeline"
	"github.com/keathmilligan/flowstt-core/pkg/transcribe"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Println("Note: No .env file found, using system environment variables")
	}

	logger := logging.New()
	cfg := config.Load()

	modelPath := os.Getenv("FLOWSTT_MODEL_PATH")
	if modelPath == "" {
		modelPath = "models/ggml-base.en.bin"
	}
	language := os.Getenv("FLOWSTT_LANGUAGE")
	if language == "" {
		language = "en"
	}
	dataDir := os.Getenv("FLOWSTT_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	recordEnabled := os.Getenv("FLOWSTT_RECORD") == "1"
	monitorAddr := os.Getenv("FLOWSTT_MONITOR_ADDR")

	backend, err := capture.New()
	if err != nil {
		logger.Error("failed to initialize capture backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	bus := pipeline.NewBus(64)
	recorder := audio.NewRecorder(dataDir, recordEnabled)
	transcriber := transcribe.NewWhisperTranscriber(modelPath, language)
	defer transcriber.Close()

	queue := transcribe.NewQueue(transcriber, recorder, bus, logger)
	queue.StartWorker()

	controller := pipeline.NewController(backend, queue, bus, logger)

	if monitorAddr != "" {
		mon := monitor.New(bus, logger)
		srv := &http.Server{Addr: monitorAddr, Handler: mon}
		go func() {
			logger.Info("monitor listening", "addr", monitorAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitor server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	source1, source2 := selectSources(backend, logger)
	if err := controller.ConfigureSources(source1, source2); err != nil {
		logger.Error("failed to configure capture sources", "error", err)
		os.Exit(1)
	}
	if err := controller.SetMode(cfg.TranscriptionMode); err != nil {
		logger.Error("failed to set transcription mode", "error", err)
		os.Exit(1)
	}

	go func() {
		ch, id := bus.Subscribe()
		defer bus.Unsubscribe(id)
		for evt := range ch {
			switch evt.Type {
			case pipeline.EventSpeechStarted:
				fmt.Printf("\r\033[K🎤 [SPEECH] Started\n")
			case pipeline.EventSpeechEnded:
				data := evt.Data.(pipeline.SpeechEndedData)
				fmt.Printf("\r\033[K⌛ [SPEECH] Ended (%.0fms)\n", data.DurationMS)
			case pipeline.EventTranscriptionComplete:
				data := evt.Data.(pipeline.TranscriptionCompleteData)
				fmt.Printf("\r\033[K📝 [TRANSCRIPT] %s\n", data.Text)
			case pipeline.EventTranscriptionError:
				data := evt.Data.(pipeline.TranscriptionErrorData)
				fmt.Printf("\r\033[K❌ [ERROR] %v\n", data.Err)
			case pipeline.EventCaptureStateChanged:
				data := evt.Data.(pipeline.CaptureStateChangedData)
				fmt.Printf("\r\033[K🔌 [CAPTURE] capturing=%v err=%v\n", data.Capturing, data.Err)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Printf("\nShutting down...\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := controller.Shutdown(ctx); err != nil {
		logger.Warn("controller shutdown did not complete cleanly", "error", err)
	}
	queue.Shutdown(5 * time.Second)
}

// selectSources resolves FLOWSTT_SOURCE1/FLOWSTT_SOURCE2 device names
// against the enumerated input devices, falling back to the first
// available input device for source1 and no source2 (mic-only capture).
func selectSources(backend pipeline.CaptureBackend, logger pipeline.Logger) (*pipeline.DeviceID, *pipeline.DeviceID) {
	devices, err := backend.ListInputDevices()
	if err != nil || len(devices) == 0 {
		logger.Warn("no input devices found", "error", err)
		return nil, nil
	}

	want1 := os.Getenv("FLOWSTT_SOURCE1")
	want2 := os.Getenv("FLOWSTT_SOURCE2")

	var source1, source2 *pipeline.DeviceID
	for _, d := range devices {
		d := d
		if want1 != "" && d.Name == want1 {
			source1 = &d.ID
		}
		if want2 != "" && d.Name == want2 {
			source2 = &d.ID
		}
	}
	if source1 == nil {
		source1 = &devices[0].ID
	}
	return source1, source2
}
