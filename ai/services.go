package ai

import (
	"log"

	"github.com/google/uuid"
)

// SpeechDetector выносит вердикт речь/не речь по окну сэмплов.
// Реализации: SileroVAD.
type SpeechDetector interface {
	// DetectWindow возвращает true если в окне есть речь.
	// Окна короче минимального размера дают false без инференса.
	DetectWindow(samples []float32) (bool, error)
	// Reset сбрасывает внутреннее состояние детектора (LSTM, контекст)
	Reset()
	Close() error
}

// VoiceEncoder извлекает эмбеддинг голоса из окна сэмплов.
// Реализации: SpeakerEncoder (ONNX), SherpaEncoder.
type VoiceEncoder interface {
	Embed(samples []float32) ([]float32, error)
	// Dim размерность эмбеддинга
	Dim() int
	Close() error
}

// VADTask задача на детекцию речи. ID — uuid, по которому результат
// сопоставляется с черновым сегментом в обработчике.
type VADTask struct {
	ID      string
	Samples []float32
}

// VADResult результат детекции
type VADResult struct {
	ID       string
	IsSpeech bool
	Err      error
}

// EmbedTask задача на извлечение эмбеддинга
type EmbedTask struct {
	ID      string
	Samples []float32
}

// EmbedResult результат извлечения
type EmbedResult struct {
	ID        string
	Embedding []float32
	Err       error
}

// VADWorker однопоточный воркер детекции речи. Однопоточность обязательна:
// у Silero VAD состояние между окнами, параллельный инференс его ломает.
// Очереди буферизованы; при переполнении Submit отказывает вместо блокировки
// тракта захвата.
type VADWorker struct {
	detector SpeechDetector
	tasks    chan VADTask
	results  chan VADResult
	done     chan struct{}
}

// NewVADWorker создаёт воркер с очередями глубины depth
func NewVADWorker(d SpeechDetector, depth int) *VADWorker {
	return &VADWorker{
		detector: d,
		tasks:    make(chan VADTask, depth),
		results:  make(chan VADResult, depth),
		done:     make(chan struct{}),
	}
}

// Start запускает цикл воркера в отдельной горутине
func (w *VADWorker) Start() {
	go func() {
		for {
			select {
			case <-w.done:
				return
			case task := <-w.tasks:
				isSpeech, err := w.detector.DetectWindow(task.Samples)
				select {
				case w.results <- VADResult{ID: task.ID, IsSpeech: isSpeech, Err: err}:
				case <-w.done:
					return
				}
			}
		}
	}()
}

// Submit ставит окно в очередь на детекцию. Возвращает ID задачи и false,
// если очередь переполнена (окно пропускается).
func (w *VADWorker) Submit(samples []float32) (string, bool) {
	id := uuid.NewString()
	select {
	case w.tasks <- VADTask{ID: id, Samples: samples}:
		return id, true
	default:
		log.Printf("VADWorker: queue full, window dropped")
		return "", false
	}
}

// Results канал результатов. Читается неблокирующе из тика обработчика.
func (w *VADWorker) Results() <-chan VADResult {
	return w.results
}

// Reset сбрасывает состояние детектора. Вызывать только когда очередь пуста.
func (w *VADWorker) Reset() {
	w.detector.Reset()
}

// Stop останавливает воркер. Задачи в очереди отбрасываются.
func (w *VADWorker) Stop() {
	close(w.done)
}

// EncoderWorker однопоточный воркер извлечения эмбеддингов
type EncoderWorker struct {
	encoder VoiceEncoder
	tasks   chan EmbedTask
	results chan EmbedResult
	done    chan struct{}
}

// NewEncoderWorker создаёт воркер с очередями глубины depth
func NewEncoderWorker(e VoiceEncoder, depth int) *EncoderWorker {
	return &EncoderWorker{
		encoder: e,
		tasks:   make(chan EmbedTask, depth),
		results: make(chan EmbedResult, depth),
		done:    make(chan struct{}),
	}
}

// Start запускает цикл воркера в отдельной горутине
func (w *EncoderWorker) Start() {
	go func() {
		for {
			select {
			case <-w.done:
				return
			case task := <-w.tasks:
				emb, err := w.encoder.Embed(task.Samples)
				select {
				case w.results <- EmbedResult{ID: task.ID, Embedding: emb, Err: err}:
				case <-w.done:
					return
				}
			}
		}
	}()
}

// Submit ставит окно в очередь на кодирование. Возвращает ID задачи и false,
// если очередь переполнена.
func (w *EncoderWorker) Submit(samples []float32) (string, bool) {
	id := uuid.NewString()
	select {
	case w.tasks <- EmbedTask{ID: id, Samples: samples}:
		return id, true
	default:
		log.Printf("EncoderWorker: queue full, window dropped")
		return "", false
	}
}

// Results канал результатов
func (w *EncoderWorker) Results() <-chan EmbedResult {
	return w.results
}

// Stop останавливает воркер
func (w *EncoderWorker) Stop() {
	close(w.done)
}
