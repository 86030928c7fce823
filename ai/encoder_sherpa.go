package ai

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// SherpaEncoderConfig конфигурация энкодера на базе sherpa-onnx
type SherpaEncoderConfig struct {
	ModelPath  string
	SampleRate int
	NumThreads int
	Provider   string // ONNX provider: cpu, cuda, coreml, auto
}

// detectBestProvider определяет лучший provider для текущей платформы
func detectBestProvider() string {
	// На macOS с Apple Silicon предпочитаем CoreML
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "coreml"
	}
	return "cpu"
}

// DefaultSherpaEncoderConfig возвращает конфигурацию по умолчанию
// с автоматическим определением provider
func DefaultSherpaEncoderConfig(modelPath string) SherpaEncoderConfig {
	return SherpaEncoderConfig{
		ModelPath:  modelPath,
		SampleRate: 16000,
		NumThreads: 2,
		Provider:   "auto",
	}
}

// SherpaEncoder извлекает эмбеддинги голоса через sherpa-onnx
// SpeakerEmbeddingExtractor. Реализует VoiceEncoder. Альтернатива
// SpeakerEncoder: mel-фронтенд считает сама sherpa, модели — любые из зоопарка
// wespeaker/3dspeaker без подгонки формы входа.
type SherpaEncoder struct {
	config      SherpaEncoderConfig
	extractor   *sherpa.SpeakerEmbeddingExtractor
	mu          sync.Mutex
	initialized bool
}

// NewSherpaEncoder создаёт энкодер
func NewSherpaEncoder(config SherpaEncoderConfig) (*SherpaEncoder, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("embedding model not found: %s", config.ModelPath)
	}

	provider := config.Provider
	if provider == "auto" || provider == "" {
		provider = detectBestProvider()
	}

	sherpaConfig := sherpa.SpeakerEmbeddingExtractorConfig{
		Model:      config.ModelPath,
		NumThreads: config.NumThreads,
		Debug:      0,
		Provider:   provider,
	}

	extractor := sherpa.NewSpeakerEmbeddingExtractor(&sherpaConfig)
	if extractor == nil {
		// Если аппаратный provider не сработал, пробуем CPU
		if provider != "cpu" {
			log.Printf("SherpaEncoder: %s provider failed, falling back to CPU", provider)
			sherpaConfig.Provider = "cpu"
			extractor = sherpa.NewSpeakerEmbeddingExtractor(&sherpaConfig)
			provider = "cpu"
		}
		if extractor == nil {
			return nil, fmt.Errorf("failed to create sherpa-onnx embedding extractor")
		}
	}

	config.Provider = provider
	log.Printf("SherpaEncoder initialized: provider=%s, model=%s", provider, config.ModelPath)

	return &SherpaEncoder{
		config:      config,
		extractor:   extractor,
		initialized: true,
	}, nil
}

// Embed извлекает L2-нормализованный эмбеддинг из окна аудио
func (e *SherpaEncoder) Embed(samples []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, fmt.Errorf("encoder not initialized")
	}
	if len(samples) < e.config.SampleRate/10 {
		return nil, fmt.Errorf("audio too short: %d samples", len(samples))
	}

	stream := e.extractor.CreateStream()
	defer sherpa.DeleteOnlineStream(stream)

	stream.AcceptWaveform(e.config.SampleRate, samples)
	stream.InputFinished()

	if !e.extractor.IsReady(stream) {
		return nil, fmt.Errorf("not enough audio for embedding")
	}

	embedding := e.extractor.Compute(stream)
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return normalizeVector(embedding), nil
}

// Dim размерность эмбеддинга
func (e *SherpaEncoder) Dim() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.extractor == nil {
		return 0
	}
	return e.extractor.Dim()
}

// Provider фактически используемый ONNX provider
func (e *SherpaEncoder) Provider() string {
	return e.config.Provider
}

// Close освобождает ресурсы
func (e *SherpaEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.extractor != nil {
		sherpa.DeleteSpeakerEmbeddingExtractor(e.extractor)
		e.extractor = nil
	}
	e.initialized = false
	return nil
}
