package ai

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// SileroVADConfig конфигурация Silero VAD
type SileroVADConfig struct {
	ModelPath  string
	SampleRate int     // 8000 или 16000
	Threshold  float32 // Порог вероятности речи (0.0 - 1.0)
}

// DefaultSileroVADConfig возвращает конфигурацию по умолчанию
func DefaultSileroVADConfig(modelPath string) SileroVADConfig {
	return SileroVADConfig{
		ModelPath:  modelPath,
		SampleRate: 16000,
		Threshold:  0.5,
	}
}

// SileroVAD детектор голосовой активности на основе Silero VAD (ONNX).
// Реализует SpeechDetector. Модель хранит LSTM состояние между чанками,
// поэтому инференс строго однопоточный.
type SileroVAD struct {
	session *ort.DynamicAdvancedSession
	config  SileroVADConfig

	// LSTM состояние (сохраняется между вызовами для streaming)
	state []float32

	// Контекст - последние N сэмплов предыдущего чанка
	// 64 сэмпла для 16kHz, 32 для 8kHz
	context []float32

	mu          sync.Mutex
	initialized bool
}

// NewSileroVAD создаёт детектор
func NewSileroVAD(config SileroVADConfig) (*SileroVAD, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}
	if config.SampleRate != 8000 && config.SampleRate != 16000 {
		return nil, fmt.Errorf("sample rate must be 8000 or 16000, got %d", config.SampleRate)
	}

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	// Silero VAD inputs: input, state, sr; outputs: output, stateN
	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	contextSize := 64
	if config.SampleRate == 8000 {
		contextSize = 32
	}

	return &SileroVAD{
		session:     session,
		config:      config,
		state:       make([]float32, 2*1*128), // [2, 1, 128] - h и c состояния LSTM
		context:     make([]float32, contextSize),
		initialized: true,
	}, nil
}

// chunkSize размер чанка инференса: 512 сэмплов для 16kHz, 256 для 8kHz
func (v *SileroVAD) chunkSize() int {
	if v.config.SampleRate == 8000 {
		return 256
	}
	return 512
}

// DetectWindow возвращает true если хотя бы один чанк окна превысил порог
// вероятности речи. Окна короче минимального размера дают false сразу:
// в начале сессии префикс буфера ещё не содержит достаточно аудио.
func (v *SileroVAD) DetectWindow(samples []float32) (bool, error) {
	if len(samples) < v.config.SampleRate/10 {
		return false, nil
	}

	chunkSize := v.chunkSize()
	speech := false
	for i := 0; i+chunkSize <= len(samples); i += chunkSize {
		prob, err := v.processChunk(samples[i : i+chunkSize])
		if err != nil {
			return false, err
		}
		if prob >= v.config.Threshold {
			speech = true
		}
	}
	return speech, nil
}

// processChunk прогоняет один чанк через модель и возвращает вероятность речи
func (v *SileroVAD) processChunk(samples []float32) (float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return 0, fmt.Errorf("silero vad not initialized")
	}

	contextSize := len(v.context)

	// Вход модели: [batch, context_size + chunk_size]
	inputData := make([]float32, contextSize+len(samples))
	copy(inputData[:contextSize], v.context)
	copy(inputData[contextSize:], samples)

	// Контекст следующего вызова — последние contextSize сэмплов
	if len(samples) >= contextSize {
		copy(v.context, samples[len(samples)-contextSize:])
	} else {
		copy(v.context, v.context[len(samples):])
		copy(v.context[contextSize-len(samples):], samples)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(inputData))), inputData)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), v.state)
	if err != nil {
		return 0, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(v.config.SampleRate)})
	if err != nil {
		return 0, fmt.Errorf("failed to create sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := v.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	copy(v.state, outputs[1].(*ort.Tensor[float32]).GetData())

	outputData := outputs[0].(*ort.Tensor[float32]).GetData()
	if len(outputData) > 0 {
		return outputData[0], nil
	}
	return 0, nil
}

// Reset сбрасывает LSTM состояние и контекст
func (v *SileroVAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.state {
		v.state[i] = 0
	}
	for i := range v.context {
		v.context[i] = 0
	}
}

// Close освобождает ресурсы
func (v *SileroVAD) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
	v.initialized = false
	return nil
}
