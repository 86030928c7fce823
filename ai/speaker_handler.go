package ai

import (
	"log"
	"sort"
	"sync"

	"speakline/timeline"
)

// PendingRelabeler переназначает pending сегменты таймлайна новому спикеру.
// Реализуется timeline.Timeline.
type PendingRelabeler interface {
	RelabelPending(start, end float64, id timeline.SpeakerID) int
}

// SpeakerHandler инкрементальный классификатор спикеров: назначает
// эмбеддингу подтверждённый ID, откладывает решение в pending буфер или
// продвигает накопившуюся когезивную группу в нового спикера.
//
// Дисциплина блокировок: мьютекс хендлера никогда не удерживается при
// вызове таймлайна или колбэков. Обратный порядок (таймлайн -> хендлер
// в ReclassifyAll) поэтому безопасен.
type SpeakerHandler struct {
	mu  sync.Mutex
	cfg Config

	current   timeline.SpeakerID
	members   [][][]float32 // эмбеддинги каждого спикера, индекс = ID
	centroids [][]float32   // покомпонентная медиана members, nil если спикер неактивен
	active    map[int]bool

	pendingEmbs  [][]float32
	pendingTimes []float64

	pendingEnabled bool
	updateEnabled  bool

	relabeler           PendingRelabeler
	onSpeakerChanged    func(timeline.SpeakerID)
	onEmbeddingsUpdated func()
}

// promotion результат успешного промоушена, применяется после снятия мьютекса
type promotion struct {
	id    timeline.SpeakerID
	start float64
	end   float64
}

// NewSpeakerHandler создаёт классификатор с пустым состоянием
func NewSpeakerHandler(cfg Config) *SpeakerHandler {
	return &SpeakerHandler{
		cfg:            cfg,
		current:        timeline.SpeakerNone,
		members:        make([][][]float32, cfg.MaxSpeakers),
		centroids:      make([][]float32, cfg.MaxSpeakers),
		active:         make(map[int]bool),
		pendingEnabled: true,
		updateEnabled:  true,
	}
}

// SetRelabeler подключает таймлайн для переназначения pending сегментов
// при промоушене. Регистрируется один раз при сборке пайплайна.
func (h *SpeakerHandler) SetRelabeler(r PendingRelabeler) {
	h.relabeler = r
}

// SetSpeakerChangedCallback регистрирует уведомление о смене текущего спикера
func (h *SpeakerHandler) SetSpeakerChangedCallback(fn func(timeline.SpeakerID)) {
	h.onSpeakerChanged = fn
}

// SetEmbeddingsUpdatedCallback регистрирует уведомление об изменении
// состава спикеров (промоушен, рекластеризация, сброс)
func (h *SpeakerHandler) SetEmbeddingsUpdatedCallback(fn func()) {
	h.onEmbeddingsUpdated = fn
}

// Classify назначает эмбеддингу спикера. segTime — время сегмента,
// породившего эмбеддинг (для привязки pending записей к таймлайну).
// Возвращает ID (возможно SpeakerPending) и косинусное сходство с
// выбранным центроидом.
//
// Порядок решения:
//  1. нет активных спикеров, pending включён — в буфер;
//  2. нет активных спикеров, pending выключен — немедленно спикер 0;
//  3. уверенный матч (>= UpdateThreshold) — пополняет спикера и медиану;
//  4. слабый матч (>= PendingThreshold) — принимается без обновления
//     статистики, чтобы не дрейфовать центроид на сомнительных данных;
//  5. ниже обоих порогов — в pending, либо принудительно к лучшему
//     существующему, когда новых спикеров создавать уже нельзя.
func (h *SpeakerHandler) Classify(emb []float32, segTime float64) (timeline.SpeakerID, float64) {
	h.mu.Lock()

	prev := h.current
	var result timeline.SpeakerID
	var sim float64
	var promo *promotion

	switch {
	case len(h.active) == 0 && h.pendingEnabled:
		h.pendingEmbs = append(h.pendingEmbs, emb)
		h.pendingTimes = append(h.pendingTimes, segTime)
		promo = h.checkPendingPromotionLocked()
		result, sim = timeline.SpeakerPending, 0.0

	case len(h.active) == 0:
		h.members[0] = append(h.members[0], emb)
		h.centroids[0] = emb
		h.active[0] = true
		h.current = 0
		result, sim = 0, 1.0

	default:
		bestID, bestSim := h.bestMatchLocked(emb)
		switch {
		case bestSim >= h.cfg.UpdateThreshold:
			h.members[bestID] = append(h.members[bestID], emb)
			if h.updateEnabled {
				h.centroids[bestID] = componentMedian(h.members[bestID])
			}
			h.current = timeline.SpeakerID(bestID)
			result, sim = h.current, bestSim

		case bestSim >= h.cfg.PendingThreshold:
			h.current = timeline.SpeakerID(bestID)
			result, sim = h.current, bestSim

		default:
			if h.pendingEnabled && len(h.active) < h.cfg.MaxSpeakers {
				h.pendingEmbs = append(h.pendingEmbs, emb)
				h.pendingTimes = append(h.pendingTimes, segTime)
				promo = h.checkPendingPromotionLocked()
				result, sim = timeline.SpeakerPending, bestSim
			} else {
				h.current = timeline.SpeakerID(bestID)
				result, sim = h.current, bestSim
			}
		}
	}

	changed := h.current != prev
	current := h.current
	h.mu.Unlock()

	if promo != nil {
		if h.relabeler != nil {
			h.relabeler.RelabelPending(promo.start, promo.end, promo.id)
		}
		if h.onEmbeddingsUpdated != nil {
			h.onEmbeddingsUpdated()
		}
	}
	if changed && h.onSpeakerChanged != nil {
		h.onSpeakerChanged(current)
	}

	return result, sim
}

// bestMatchLocked возвращает активного спикера с максимальным сходством
func (h *SpeakerHandler) bestMatchLocked(emb []float32) (int, float64) {
	bestID, bestSim := -1, -1.0
	for id := range h.active {
		if h.centroids[id] == nil {
			continue
		}
		if sim := CosineSimilarity(emb, h.centroids[id]); sim > bestSim {
			bestID, bestSim = id, sim
		}
	}
	return bestID, bestSim
}

// BestMatch реализует timeline.Classifier: ближайший активный центроид
// без порога. SpeakerNone если активных спикеров нет.
func (h *SpeakerHandler) BestMatch(emb []float32) (timeline.SpeakerID, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, sim := h.bestMatchLocked(emb)
	if id < 0 {
		return timeline.SpeakerNone, sim
	}
	return timeline.SpeakerID(id), sim
}

// checkPendingPromotionLocked пытается продвинуть когезивную группу pending
// эмбеддингов в нового спикера. По достижении потолка спикеров pending
// отключается насовсем: новые идентичности в этой сессии не создаются.
//
// Группа ищется agglomerative кластеризацией (average linkage, косинус,
// порог расстояния); берётся самый крупный кластер. Диапазон переназначения
// на таймлайне — [время первого, время последнего] элемента кластера по
// индексам поступления. Успешный промоушен очищает pending буфер целиком,
// включая эмбеддинги вне кластера.
func (h *SpeakerHandler) checkPendingPromotionLocked() *promotion {
	if len(h.pendingEmbs) < h.cfg.MinClusterSize || len(h.active) >= h.cfg.MaxSpeakers {
		if len(h.active) >= h.cfg.MaxSpeakers {
			h.pendingEnabled = false
		}
		return nil
	}

	labels := AverageLinkageCosine(h.pendingEmbs, h.cfg.ClusterDistanceThreshold)
	label, size := largestCluster(labels)
	if size < h.cfg.MinClusterSize {
		return nil
	}

	id := h.nextSpeakerIDLocked()
	if id < 0 {
		return nil
	}

	first, last := -1, -1
	group := make([][]float32, 0, size)
	for i, l := range labels {
		if l != label {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
		group = append(group, h.pendingEmbs[i])
	}

	h.members[id] = group
	h.centroids[id] = componentMedian(group)
	h.active[id] = true

	p := &promotion{
		id:    timeline.SpeakerID(id),
		start: h.pendingTimes[first],
		end:   h.pendingTimes[last],
	}

	h.pendingEmbs = nil
	h.pendingTimes = nil

	log.Printf("SpeakerHandler: promoted %d pending embeddings to %s [%.2f-%.2f]",
		size, p.id, p.start, p.end)
	return p
}

// nextSpeakerIDLocked возвращает наименьший свободный ID ниже потолка, или -1
func (h *SpeakerHandler) nextSpeakerIDLocked() int {
	for i := 0; i < h.cfg.MaxSpeakers; i++ {
		if !h.active[i] {
			return i
		}
	}
	return -1
}

// Recluster разбивает все известные эмбеддинги (спикеры + pending) заново
// методом Уорда ровно на N кластеров, N = min(target или текущее число
// активных, всего эмбеддингов, потолок). target <= 0 означает "как сейчас".
// Требуется минимум два эмбеддинга, иначе состояние не трогается и
// возвращается false. После успеха старые метки сегментов устарели —
// вызывающий обязан выполнить Timeline.ReclassifyAll.
func (h *SpeakerHandler) Recluster(target int) bool {
	h.mu.Lock()

	var all [][]float32
	for id := 0; id < h.cfg.MaxSpeakers; id++ {
		all = append(all, h.members[id]...)
	}
	all = append(all, h.pendingEmbs...)

	if len(all) < 2 {
		h.mu.Unlock()
		return false
	}

	n := target
	if n <= 0 {
		n = len(h.active)
	}
	if n > len(all) {
		n = len(all)
	}
	if n > h.cfg.MaxSpeakers {
		n = h.cfg.MaxSpeakers
	}
	if n < 1 {
		h.mu.Unlock()
		return false
	}

	labels := WardEuclidean(all, n)

	h.members = make([][][]float32, h.cfg.MaxSpeakers)
	h.centroids = make([][]float32, h.cfg.MaxSpeakers)
	h.active = make(map[int]bool)
	h.pendingEmbs = nil
	h.pendingTimes = nil

	for i, emb := range all {
		if labels[i] >= h.cfg.MaxSpeakers {
			continue // кластеры сверх потолка отбрасываются
		}
		h.members[labels[i]] = append(h.members[labels[i]], emb)
		h.active[labels[i]] = true
	}
	for id := range h.active {
		h.centroids[id] = componentMedian(h.members[id])
	}

	log.Printf("SpeakerHandler: reclustered %d embeddings into %d speakers", len(all), len(h.active))
	h.mu.Unlock()

	if h.onEmbeddingsUpdated != nil {
		h.onEmbeddingsUpdated()
	}
	return true
}

// TogglePending переключает создание новых идентичностей, возвращает новое состояние
func (h *SpeakerHandler) TogglePending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingEnabled = !h.pendingEnabled
	return h.pendingEnabled
}

// ToggleEmbeddingUpdate переключает обновление центроидов, возвращает новое состояние
func (h *SpeakerHandler) ToggleEmbeddingUpdate() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updateEnabled = !h.updateEnabled
	return h.updateEnabled
}

// PendingEnabled текущее состояние pending режима
func (h *SpeakerHandler) PendingEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pendingEnabled
}

// ActiveSpeakers возвращает отсортированные ID активных спикеров
func (h *SpeakerHandler) ActiveSpeakers() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.active))
	for id := range h.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MemberCount количество эмбеддингов у спикера
func (h *SpeakerHandler) MemberCount(id int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id < 0 || id >= h.cfg.MaxSpeakers {
		return 0
	}
	return len(h.members[id])
}

// PendingCount размер pending буфера
func (h *SpeakerHandler) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pendingEmbs)
}

// TotalEmbeddings суммарное число эмбеддингов (спикеры + pending)
func (h *SpeakerHandler) TotalEmbeddings() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := len(h.pendingEmbs)
	for id := range h.active {
		total += len(h.members[id])
	}
	return total
}

// AllEmbeddings возвращает все эмбеддинги и их метки (-1 для pending).
// Для визуализации.
func (h *SpeakerHandler) AllEmbeddings() ([][]float32, []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var embs [][]float32
	var labels []int
	for id := 0; id < h.cfg.MaxSpeakers; id++ {
		if !h.active[id] {
			continue
		}
		for _, emb := range h.members[id] {
			embs = append(embs, emb)
			labels = append(labels, id)
		}
	}
	for _, emb := range h.pendingEmbs {
		embs = append(embs, emb)
		labels = append(labels, -1)
	}
	return embs, labels
}

// Reset полностью очищает состояние классификатора
func (h *SpeakerHandler) Reset() {
	h.mu.Lock()
	h.current = timeline.SpeakerNone
	h.members = make([][][]float32, h.cfg.MaxSpeakers)
	h.centroids = make([][]float32, h.cfg.MaxSpeakers)
	h.active = make(map[int]bool)
	h.pendingEmbs = nil
	h.pendingTimes = nil
	h.pendingEnabled = true
	h.mu.Unlock()

	if h.onEmbeddingsUpdated != nil {
		h.onEmbeddingsUpdated()
	}
}
