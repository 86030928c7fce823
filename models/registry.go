// Package models предоставляет реестр и загрузку моделей диаризации
package models

import "path/filepath"

// EngineType назначение модели
type EngineType string

const (
	EngineTypeVAD     EngineType = "vad"     // Voice Activity Detection
	EngineTypeEncoder EngineType = "encoder" // Speaker embedding
)

// ModelInfo информация о модели
type ModelInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Engine      EngineType `json:"engine"`
	FileName    string     `json:"fileName"`
	Size        string     `json:"size"`
	SizeBytes   int64      `json:"sizeBytes"`
	Description string     `json:"description"`
	Recommended bool       `json:"recommended,omitempty"`
	DownloadURL string     `json:"downloadUrl"`
}

// ModelStatus статус модели на устройстве
type ModelStatus string

const (
	ModelStatusNotDownloaded ModelStatus = "not_downloaded"
	ModelStatusDownloading   ModelStatus = "downloading"
	ModelStatusDownloaded    ModelStatus = "downloaded"
	ModelStatusError         ModelStatus = "error"
)

// ModelState состояние модели с информацией
type ModelState struct {
	ModelInfo
	Status   ModelStatus `json:"status"`
	Progress float64     `json:"progress,omitempty"` // 0-100
	Error    string      `json:"error,omitempty"`
	Path     string      `json:"path,omitempty"`
}

// Registry реестр доступных моделей
var Registry = []ModelInfo{
	// ===== VAD =====
	{
		ID:          "silero-vad-v5",
		Name:        "Silero VAD v5",
		Engine:      EngineTypeVAD,
		FileName:    "silero_vad.onnx",
		Size:        "2.2 MB",
		SizeBytes:   2_327_524,
		Description: "Enterprise-grade Voice Activity Detector (Silero)",
		Recommended: true,
		DownloadURL: "https://github.com/snakers4/silero-vad/raw/master/src/silero_vad/data/silero_vad.onnx",
	},

	// ===== Speaker embedding =====
	{
		ID:          "wespeaker-voxceleb-resnet34",
		Name:        "WeSpeaker ResNet34",
		Engine:      EngineTypeEncoder,
		FileName:    "wespeaker_en_voxceleb_resnet34.onnx",
		Size:        "26 MB",
		SizeBytes:   26_851_029,
		Description: "Speaker embedding (WeSpeaker ResNet34)",
		Recommended: true,
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/speaker-recongition-models/wespeaker_en_voxceleb_resnet34.onnx",
	},
	{
		ID:          "3dspeaker-speech-eres2net",
		Name:        "3D-Speaker ERes2Net",
		Engine:      EngineTypeEncoder,
		FileName:    "3dspeaker_speech_eres2net_base_sv_zh-cn_3dspeaker_16k.onnx",
		Size:        "25 MB",
		SizeBytes:   25_000_000,
		Description: "Speaker embedding (3D-Speaker, Alibaba)",
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/speaker-recongition-models/3dspeaker_speech_eres2net_base_sv_zh-cn_3dspeaker_16k.onnx",
	},
}

// GetModelByID возвращает модель по ID
func GetModelByID(id string) *ModelInfo {
	for _, m := range Registry {
		if m.ID == id {
			return &m
		}
	}
	return nil
}

// GetModelsByEngine возвращает модели для определённого назначения
func GetModelsByEngine(engine EngineType) []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if m.Engine == engine {
			result = append(result, m)
		}
	}
	return result
}

// ModelPath путь к файлу модели внутри директории моделей
func (m ModelInfo) ModelPath(modelsDir string) string {
	return filepath.Join(modelsDir, m.FileName)
}
