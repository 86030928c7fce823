// Package timeline предоставляет журнал сегментов речи с привязкой к
// времени сессии и запросами по временным диапазонам
package timeline

import (
	"encoding/json"
	"fmt"
)

// SpeakerID идентификатор спикера в рамках сессии.
// Отрицательные значения зарезервированы: SpeakerNone (нет назначения)
// и SpeakerPending (эмбеддинг ждёт накопления доказательств).
type SpeakerID int

const (
	// SpeakerNone сегмент без спикера (не речь или эмбеддинг не получен)
	SpeakerNone SpeakerID = -1
	// SpeakerPending речь без уверенного назначения, кандидат на промоушен
	SpeakerPending SpeakerID = -2
)

// IsAssigned возвращает true если ID указывает на подтверждённого спикера
func (id SpeakerID) IsAssigned() bool {
	return id >= 0
}

// IsPending возвращает true если назначение отложено
func (id SpeakerID) IsPending() bool {
	return id == SpeakerPending
}

func (id SpeakerID) String() string {
	switch id {
	case SpeakerNone:
		return "none"
	case SpeakerPending:
		return "pending"
	default:
		return fmt.Sprintf("speaker %d", int(id))
	}
}

// MarshalJSON сериализует ID в формат UI протокола:
// null / "pending" / целое число
func (id SpeakerID) MarshalJSON() ([]byte, error) {
	switch id {
	case SpeakerNone:
		return []byte("null"), nil
	case SpeakerPending:
		return []byte(`"pending"`), nil
	default:
		return json.Marshal(int(id))
	}
}

// UnmarshalJSON парсит null / "pending" / число
func (id *SpeakerID) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*id = SpeakerNone
		return nil
	case `"pending"`:
		*id = SpeakerPending
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid speaker id %q: %w", string(data), err)
	}
	*id = SpeakerID(n)
	return nil
}

// Segment запись об одном проанализированном окне аудио.
// Start и Duration в секундах относительно начала таймлайна.
// Speaker имеет смысл только при IsSpeech == true.
// Embedding присутствует только у речевых сегментов, дошедших до энкодера.
type Segment struct {
	Start     float64   `json:"start"`
	Duration  float64   `json:"duration"`
	IsSpeech  bool      `json:"isSpeech"`
	Speaker   SpeakerID `json:"speaker"`
	Embedding []float32 `json:"-"`
}

// NewSegment создаёт сегмент без спикера
func NewSegment(start, duration float64, isSpeech bool) Segment {
	return Segment{
		Start:    start,
		Duration: duration,
		IsSpeech: isSpeech,
		Speaker:  SpeakerNone,
	}
}

// End время окончания сегмента (производное, не хранится отдельно)
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// Contains проверяет попадание момента времени в сегмент (границы включительно)
func (s Segment) Contains(ts float64) bool {
	return s.Start <= ts && ts <= s.End()
}

// Overlap возвращает длительность пересечения сегмента с диапазоном [a, b]
func (s Segment) Overlap(a, b float64) float64 {
	start := s.Start
	if a > start {
		start = a
	}
	end := s.End()
	if b < end {
		end = b
	}
	if end <= start {
		return 0
	}
	return end - start
}
