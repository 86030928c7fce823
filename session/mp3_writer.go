// Package session отвечает за запись сессий на диск: аудио в MP3
// и метаданные с финальным таймлайном в JSON
package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// mp3BlockSamples размер блока кодирования MP3 Layer III на канал
const mp3BlockSamples = 1152

// MP3Writer стриминговый писатель mono MP3 через shine-mp3 (чистый Go)
type MP3Writer struct {
	file       *os.File
	encoder    *mp3.Encoder
	filePath   string
	sampleRate int

	// shine кодирует блоками, накапливаем до кратного размера
	buffer []int16

	samplesWritten int64
	mu             sync.Mutex
	closed         bool
}

// NewMP3Writer создаёт писатель mono MP3
func NewMP3Writer(filePath string, sampleRate int) (*MP3Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &MP3Writer{
		file:       file,
		encoder:    mp3.NewEncoder(sampleRate, 1),
		filePath:   filePath,
		sampleRate: sampleRate,
		buffer:     make([]int16, 0, 8192),
	}, nil
}

// Write дописывает float32 сэмплы. Кодирование идёт блоками по 4 фрейма.
func (w *MP3Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		w.buffer = append(w.buffer, int16(s*32767))
	}
	w.samplesWritten += int64(len(samples))

	if len(w.buffer) >= mp3BlockSamples*4 {
		if err := w.encoder.Write(w.file, w.buffer); err != nil {
			return fmt.Errorf("mp3 encode failed: %w", err)
		}
		w.buffer = w.buffer[:0]
	}
	return nil
}

// Duration длительность записанного аудио в секундах
func (w *MP3Writer) Duration() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return float64(w.samplesWritten) / float64(w.sampleRate)
}

// FilePath путь к файлу
func (w *MP3Writer) FilePath() string {
	return w.filePath
}

// Close дописывает хвост буфера (с паддингом до блока) и закрывает файл
func (w *MP3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.buffer) > 0 {
		for len(w.buffer)%mp3BlockSamples != 0 {
			w.buffer = append(w.buffer, 0)
		}
		if err := w.encoder.Write(w.file, w.buffer); err != nil {
			w.file.Close()
			return fmt.Errorf("mp3 encode failed: %w", err)
		}
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
