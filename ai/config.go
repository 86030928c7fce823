// Package ai предоставляет движок онлайн-диаризации: VAD и энкодер голоса,
// инкрементальный классификатор спикеров и оркестратор обработки потока
package ai

import "time"

// Config параметры движка диаризации. Значение неизменяемое: передаётся
// каждому компоненту при создании, глобальных настроек нет.
type Config struct {
	SampleRate int // Частота дискретизации (Гц)

	WindowSize     float64       // Длительность окна анализа (сек)
	WindowInterval time.Duration // Период отправки окон на анализ
	NotifyInterval time.Duration // Троттлинг уведомлений таймлайна для UI

	MaxSpeakers int // Жёсткий потолок количества спикеров в сессии

	// Пороги косинусного сходства для классификации
	UpdateThreshold  float64 // Уверенный матч: эмбеддинг пополняет спикера
	PendingThreshold float64 // Слабый матч: принимается без обновления статистики

	// Параметры промоушена pending буфера
	MinClusterSize           int     // Мин. размер когезивной группы
	ClusterDistanceThreshold float64 // Порог расстояния для agglomerative кластеризации

	// Глубина очередей асинхронных задач VAD и энкодера
	TaskQueueDepth int
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		SampleRate:               16000,
		WindowSize:               1.0,
		WindowInterval:           100 * time.Millisecond,
		NotifyInterval:           300 * time.Millisecond,
		MaxSpeakers:              10,
		UpdateThreshold:          0.5,
		PendingThreshold:         0.4,
		MinClusterSize:           10,
		ClusterDistanceThreshold: 0.6,
		TaskQueueDepth:           64,
	}
}

// WindowSamples размер окна анализа в сэмплах
func (c Config) WindowSamples() int {
	return int(float64(c.SampleRate) * c.WindowSize)
}

// MinWindowSamples минимальный размер окна, который имеет смысл анализировать
// (пол-окна; более короткие префиксы в начале сессии пропускаются)
func (c Config) MinWindowSamples() int {
	return c.SampleRate / 2
}
