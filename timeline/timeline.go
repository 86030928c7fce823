package timeline

import (
	"log"
	"sync"
	"time"
)

// Classifier назначает эмбеддингу ближайшего активного спикера.
// Реализуется SpeakerHandler'ом; интерфейс объявлен здесь чтобы
// таймлайн не зависел от пакета ai.
type Classifier interface {
	// BestMatch возвращает спикера с максимальным косинусным сходством
	// к эмбеддингу и само сходство. SpeakerNone если активных спикеров нет.
	BestMatch(embedding []float32) (SpeakerID, float64)
}

// Timeline журнал сегментов с транспортным состоянием (running/paused).
// Сегменты добавляются в порядке разрешения асинхронных задач, не в порядке
// start time — запросы сканируют весь журнал и от порядка не зависят.
// Потокобезопасен: мутации идут из тика обработчика, чтение из UI.
type Timeline struct {
	mu sync.RWMutex

	segments []Segment

	startTime   time.Time
	started     bool
	pausedAt    time.Time
	paused      bool
	pausedTotal time.Duration
}

// New создаёт пустой таймлайн в остановленном состоянии
func New() *Timeline {
	return &Timeline{}
}

// Start запускает отсчёт времени сессии. Повторный вызов игнорируется:
// перезапуск возможен только через Reset.
func (t *Timeline) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	t.startTime = time.Now()
	t.paused = false
	t.pausedTotal = 0
}

// Pause замораживает время сессии. No-op если не запущен или уже на паузе.
func (t *Timeline) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.paused {
		return
	}
	t.paused = true
	t.pausedAt = time.Now()
}

// Resume снимает паузу, накапливая её длительность
func (t *Timeline) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return
	}
	t.pausedTotal += time.Since(t.pausedAt)
	t.paused = false
}

// Now возвращает текущее время сессии в секундах: прошедшее wall-clock
// время минус суммарные паузы. Во время паузы заморожено на моменте паузы.
func (t *Timeline) Now() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nowLocked()
}

func (t *Timeline) nowLocked() float64 {
	if !t.started {
		return 0
	}
	if t.paused {
		return (t.pausedAt.Sub(t.startTime) - t.pausedTotal).Seconds()
	}
	return (time.Since(t.startTime) - t.pausedTotal).Seconds()
}

// IsRunning true если таймлайн запущен и не на паузе
func (t *Timeline) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started && !t.paused
}

// Started true если таймлайн хоть раз запускался с момента Reset
func (t *Timeline) Started() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started
}

// Add добавляет сегмент в журнал. Сегменты принимаются только в состоянии
// running: всё, что разрешилось во время паузы или до старта, отбрасывается.
func (t *Timeline) Add(seg Segment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.paused {
		return false
	}
	t.segments = append(t.segments, seg)
	return true
}

// Segments возвращает копию журнала, безопасную для конкурентного чтения
func (t *Timeline) Segments() []Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Len возвращает количество сегментов
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.segments)
}

// RelabelPending переназначает новому спикеру все pending сегменты,
// чьё start time попадает в [start, end] (границы включительно).
// Вызывается при промоушене. Возвращает число переназначенных сегментов.
func (t *Timeline) RelabelPending(start, end float64, id SpeakerID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.segments {
		seg := &t.segments[i]
		if seg.Speaker == SpeakerPending && seg.Start >= start && seg.Start <= end {
			seg.Speaker = id
			n++
		}
	}
	if n > 0 {
		log.Printf("Timeline: relabeled %d pending segments [%.2f-%.2f] -> %s", n, start, end, id)
	}
	return n
}

// SpeakerAt возвращает спикера первого речевого сегмента, содержащего
// момент времени ts, или SpeakerNone. При перекрытиях выигрывает первый
// по порядку добавления.
func (t *Timeline) SpeakerAt(ts float64) SpeakerID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.segments {
		if t.segments[i].IsSpeech && t.segments[i].Contains(ts) {
			return t.segments[i].Speaker
		}
	}
	return SpeakerNone
}

// DominantSpeakerInRange возвращает спикера с максимальной суммарной
// длительностью перекрытия с [a, b]. None и pending не учитываются.
// Используется для привязки слов транскрипта к спикерам.
func (t *Timeline) DominantSpeakerInRange(a, b float64) SpeakerID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	durations := make(map[SpeakerID]float64)
	for i := range t.segments {
		seg := &t.segments[i]
		if !seg.IsSpeech || !seg.Speaker.IsAssigned() {
			continue
		}
		if overlap := seg.Overlap(a, b); overlap > 0 {
			durations[seg.Speaker] += overlap
		}
	}

	best := SpeakerNone
	bestDur := 0.0
	for id, dur := range durations {
		if dur > bestDur {
			best = id
			bestDur = dur
		}
	}
	return best
}

// ReclassifyAll перепривязывает каждый речевой сегмент с сохранённым
// эмбеддингом к ближайшему активному центроиду. Порог не применяется:
// даже бывшие pending сегменты получают лучшего из существующих спикеров.
// Обязателен после полной рекластеризации — старые метки устарели.
func (t *Timeline) ReclassifyAll(c Classifier) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.segments {
		seg := &t.segments[i]
		if !seg.IsSpeech || seg.Embedding == nil {
			continue
		}
		best, _ := c.BestMatch(seg.Embedding)
		seg.Speaker = best
		n++
	}
	log.Printf("Timeline: reclassified %d segments", n)
	return n
}

// Reset очищает журнал и транспортное состояние безусловно
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = nil
	t.started = false
	t.paused = false
	t.pausedTotal = 0
}
