package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"speakline/timeline"
)

// Metadata описание сессии, пишется рядом с аудио файлом
type Metadata struct {
	SessionID  string             `json:"sessionId"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Duration   float64            `json:"duration"`
	SampleRate int                `json:"sampleRate"`
	AudioFile  string             `json:"audioFile"`
	Segments   []timeline.Segment `json:"segments"`
}

// Recorder пишет аудио сессии в MP3 и финальный таймлайн в JSON sidecar.
// Каждая сессия получает uuid и собственную директорию:
// <dir>/<uuid>/audio.mp3 + <dir>/<uuid>/metadata.json
type Recorder struct {
	mu        sync.Mutex
	sessionID string
	dir       string
	writer    *MP3Writer
	startedAt time.Time

	sampleRate int
	baseDir    string
}

// NewRecorder создаёт рекордер. Запись не стартует до Begin.
func NewRecorder(baseDir string, sampleRate int) *Recorder {
	return &Recorder{
		baseDir:    baseDir,
		sampleRate: sampleRate,
	}
}

// Begin открывает новую сессию записи. Предыдущая, если была, закрывается
// без метаданных таймлайна.
func (r *Recorder) Begin() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer != nil {
		r.writer.Close()
		r.writer = nil
	}

	id := uuid.NewString()
	dir := filepath.Join(r.baseDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create session dir: %w", err)
	}

	writer, err := NewMP3Writer(filepath.Join(dir, "audio.mp3"), r.sampleRate)
	if err != nil {
		return "", err
	}

	r.sessionID = id
	r.dir = dir
	r.writer = writer
	r.startedAt = time.Now()

	log.Printf("Recorder: session %s started", id)
	return id, nil
}

// Write дописывает чанк аудио. No-op если сессия не открыта.
func (r *Recorder) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return nil
	}
	return r.writer.Write(samples)
}

// Active true если сессия записи открыта
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer != nil
}

// SessionID идентификатор текущей сессии, пустая строка если нет записи
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Finish закрывает сессию и пишет metadata.json с финальным таймлайном
func (r *Recorder) Finish(segments []timeline.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil
	}

	duration := r.writer.Duration()
	if err := r.writer.Close(); err != nil {
		return err
	}

	meta := Metadata{
		SessionID:  r.sessionID,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now(),
		Duration:   duration,
		SampleRate: r.sampleRate,
		AudioFile:  "audio.mp3",
		Segments:   segments,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	log.Printf("Recorder: session %s finished, duration=%.1fs, segments=%d",
		r.sessionID, duration, len(segments))

	r.writer = nil
	r.sessionID = ""
	return nil
}
