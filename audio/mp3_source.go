package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// MP3Source читает MP3 файл и отдаёт 16kHz mono float32 чанки.
// Чистый Go, без FFmpeg. Используется офлайн-раннером для прогона
// записанных диалогов через тот же тракт, что и живой микрофон.
type MP3Source struct {
	samples    []float32
	sampleRate int
	pos        int
}

// NewMP3Source декодирует файл целиком в память (go-mp3 не поддерживает
// seek, а файлы диалогов короткие) и приводит к targetSampleRate mono.
func NewMP3Source(path string, targetSampleRate int) (*MP3Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// go-mp3 всегда декодирует в signed 16-bit stereo interleaved
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	numSamples := len(pcm) / 4
	mono := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono[i] = (float32(left) + float32(right)) / 2.0 / 32768.0
	}

	if decoder.SampleRate() != targetSampleRate {
		mono = resampleLinear(mono, decoder.SampleRate(), targetSampleRate)
	}

	return &MP3Source{
		samples:    mono,
		sampleRate: targetSampleRate,
	}, nil
}

// Duration длительность аудио в секундах
func (s *MP3Source) Duration() float64 {
	return float64(len(s.samples)) / float64(s.sampleRate)
}

// SampleRate частота дискретизации после приведения
func (s *MP3Source) SampleRate() int {
	return s.sampleRate
}

// ReadChunk возвращает следующий чанк до n сэмплов, io.EOF в конце
func (s *MP3Source) ReadChunk(n int) ([]float32, error) {
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := s.pos + n
	if end > len(s.samples) {
		end = len(s.samples)
	}
	chunk := s.samples[s.pos:end]
	s.pos = end
	return chunk, nil
}

// resampleLinear линейная интерполяция для ресемплинга
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}
	return resampled
}
