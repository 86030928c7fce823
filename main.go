package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"speakline/ai"
	"speakline/audio"
	"speakline/internal/api"
	"speakline/internal/config"
	"speakline/models"
	"speakline/session"
	"speakline/timeline"
)

func main() {
	cfg := config.Load()

	vadPath, err := resolveModel(cfg.VADModel, cfg.ModelsDir)
	if err != nil {
		log.Fatalf("VAD model: %v", err)
	}
	encoderPath, err := resolveModel(cfg.EncoderModel, cfg.ModelsDir)
	if err != nil {
		log.Fatalf("Encoder model: %v", err)
	}

	detector, err := ai.NewSileroVAD(ai.DefaultSileroVADConfig(vadPath))
	if err != nil {
		log.Fatalf("Failed to init VAD: %v", err)
	}
	defer detector.Close()

	var encoder ai.VoiceEncoder
	switch cfg.Encoder {
	case "sherpa":
		encoder, err = ai.NewSherpaEncoder(ai.DefaultSherpaEncoderConfig(encoderPath))
	default:
		encoder, err = ai.NewSpeakerEncoder(ai.DefaultSpeakerEncoderConfig(encoderPath))
	}
	if err != nil {
		log.Fatalf("Failed to init encoder: %v", err)
	}
	defer encoder.Close()

	aiCfg := ai.DefaultConfig()
	aiCfg.MaxSpeakers = cfg.MaxSpeakers
	aiCfg.UpdateThreshold = cfg.UpdateThreshold
	aiCfg.PendingThreshold = cfg.PendingThreshold

	tl := timeline.New()
	handler := ai.NewSpeakerHandler(aiCfg)
	proc := ai.NewProcessor(aiCfg, tl, handler, detector, encoder)
	proc.Run()
	defer proc.Stop()

	capture, err := audio.NewCapture(aiCfg.SampleRate)
	if err != nil {
		log.Fatalf("Failed to init audio capture: %v", err)
	}
	defer capture.Close()

	if err := capture.SetDevice(cfg.Device); err != nil {
		log.Printf("Failed to set capture device %q: %v", cfg.Device, err)
	}
	if err := capture.Start(); err != nil {
		log.Fatalf("Failed to start capture: %v", err)
	}

	var recorder *session.Recorder
	if cfg.Record {
		recorder = session.NewRecorder(cfg.DataDir, aiCfg.SampleRate)
	}

	// Тракт: захват -> запись на диск -> движок диаризации
	go func() {
		for chunk := range capture.Data() {
			if recorder != nil {
				if err := recorder.Write(chunk); err != nil {
					log.Printf("Recorder write error: %v", err)
				}
			}
			proc.AddChunk(chunk)
		}
	}()

	server := api.NewServer(cfg, proc, capture, recorder)
	server.Start()
}

// resolveModel принимает ID модели из реестра или прямой путь к .onnx файлу.
// Модели из реестра докачиваются при необходимости.
func resolveModel(idOrPath, modelsDir string) (string, error) {
	if strings.HasSuffix(idOrPath, ".onnx") {
		return idOrPath, nil
	}
	info := models.GetModelByID(idOrPath)
	if info == nil {
		return "", fmt.Errorf("unknown model %q", idOrPath)
	}
	return models.EnsureModel(context.Background(), *info, modelsDir, func(progress float64) {
		log.Printf("Downloading %s: %.0f%%", info.ID, progress)
	})
}
