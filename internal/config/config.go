package config

import (
	"flag"
	"path/filepath"
)

type Config struct {
	Port        string
	ControlPipe string

	DataDir   string
	ModelsDir string

	VADModel     string
	EncoderModel string
	Encoder      string // onnx | sherpa

	Device string
	Record bool

	MaxSpeakers      int
	UpdateThreshold  float64
	PendingThreshold float64
}

func Load() *Config {
	port := flag.String("port", "8080", "WebSocket server port")
	controlPipe := flag.String("control", "", "gRPC control socket path (default: platform socket)")
	dataDir := flag.String("data", "data/sessions", "Directory for session recordings")
	modelsDir := flag.String("models", "", "Directory for downloaded models (default: dataDir/../models)")
	vadModel := flag.String("vad-model", "silero-vad-v5", "VAD model ID or path to .onnx file")
	encoderModel := flag.String("encoder-model", "wespeaker-voxceleb-resnet34", "Encoder model ID or path to .onnx file")
	encoder := flag.String("encoder", "onnx", "Embedding backend: onnx or sherpa")
	device := flag.String("device", "default", "Capture device ID")
	record := flag.Bool("record", false, "Record sessions to MP3")
	maxSpeakers := flag.Int("max-speakers", 10, "Hard cap on speaker count per session")
	updateThreshold := flag.Float64("update-threshold", 0.5, "Cosine similarity for confident match")
	pendingThreshold := flag.Float64("pending-threshold", 0.4, "Cosine similarity for weak match")
	flag.Parse()

	finalModelsDir := *modelsDir
	if finalModelsDir == "" {
		finalModelsDir = filepath.Join(filepath.Dir(*dataDir), "models")
	}
	return &Config{
		Port:             *port,
		ControlPipe:      *controlPipe,
		DataDir:          *dataDir,
		ModelsDir:        finalModelsDir,
		VADModel:         *vadModel,
		EncoderModel:     *encoderModel,
		Encoder:          *encoder,
		Device:           *device,
		Record:           *record,
		MaxSpeakers:      *maxSpeakers,
		UpdateThreshold:  *updateThreshold,
		PendingThreshold: *pendingThreshold,
	}
}
