package api

import (
	"speakline/audio"
	"speakline/timeline"
)

// Message структура WebSocket сообщения (запросы и ответы)
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// Параметры запросов. Time без omitempty: нулевой момент времени —
	// валидное значение, которое должно возвращаться в ответе speaker_at.
	DeviceID string  `json:"deviceId,omitempty"`
	Target   int     `json:"target,omitempty"` // recluster: желаемое число спикеров
	Time     float64 `json:"time"`             // speaker_at: момент времени сессии
	Words    []Word  `json:"words,omitempty"`  // attribute_words

	// Ответы
	Segments  []timeline.Segment  `json:"segments,omitempty"`
	Devices   []audio.Device      `json:"devices,omitempty"`
	Status    *Status             `json:"status,omitempty"`
	Speaker   *timeline.SpeakerID `json:"speaker,omitempty"`
	Enabled   *bool               `json:"enabled,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Word слово внешнего транскрипта для привязки к спикерам.
// Speaker без omitempty: спикер 0 — валидное назначение, omitempty бы его
// выбрасывал; отсутствие назначения кодируется как null (SpeakerNone).
type Word struct {
	Text    string             `json:"text"`
	Start   float64            `json:"start"`
	End     float64            `json:"end"`
	Speaker timeline.SpeakerID `json:"speaker"`
}

// Status снимок состояния движка для UI
type Status struct {
	Started         bool    `json:"started"`
	Running         bool    `json:"running"`
	Time            float64 `json:"time"`
	Speakers        []int   `json:"speakers"`
	PendingCount    int     `json:"pendingCount"`
	TotalEmbeddings int     `json:"totalEmbeddings"`
	PendingEnabled  bool    `json:"pendingEnabled"`
	SegmentCount    int     `json:"segmentCount"`
	RecordingID     string  `json:"recordingId,omitempty"`
}
