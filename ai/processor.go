package ai

import (
	"log"
	"sync"
	"time"

	"speakline/timeline"
)

// draftSegment черновик сегмента: создаётся при отправке окна на VAD,
// живёт в карте ожидания пока асинхронные задачи не разрешатся
type draftSegment struct {
	start    float64
	duration float64
	samples  []float32
}

// Processor оркестратор потока: кольцевой буфер окна, диспетчеризация
// окон на VAD и энкодер, сопоставление результатов с черновиками по ID
// задач и запись готовых сегментов в таймлайн.
//
// AddChunk вызывается синхронно из тракта захвата; вся корреляция задач
// происходит внутри него, поэтому сегменты попадают в таймлайн в порядке
// разрешения задач, а не в порядке start time.
type Processor struct {
	cfg     Config
	tl      *timeline.Timeline
	handler *SpeakerHandler
	vad     *VADWorker
	encoder *EncoderWorker
	window  *WindowBuffer

	mu           sync.Mutex
	pendingVAD   map[string]draftSegment
	pendingEmb   map[string]draftSegment
	lastDispatch time.Time
	lastNotify   time.Time

	onTimeline func([]timeline.Segment)
}

// NewProcessor собирает оркестратор и связывает классификатор с таймлайном.
// Воркеры создаются, но не запускаются: вызвать Run перед подачей аудио.
func NewProcessor(cfg Config, tl *timeline.Timeline, handler *SpeakerHandler, detector SpeechDetector, encoder VoiceEncoder) *Processor {
	handler.SetRelabeler(tl)
	return &Processor{
		cfg:        cfg,
		tl:         tl,
		handler:    handler,
		vad:        NewVADWorker(detector, cfg.TaskQueueDepth),
		encoder:    NewEncoderWorker(encoder, cfg.TaskQueueDepth),
		window:     NewWindowBuffer(cfg.WindowSamples()),
		pendingVAD: make(map[string]draftSegment),
		pendingEmb: make(map[string]draftSegment),
	}
}

// SetTimelineCallback регистрирует уведомление об изменении таймлайна.
// Вызывается не чаще NotifyInterval, со свежей копией журнала.
func (p *Processor) SetTimelineCallback(fn func([]timeline.Segment)) {
	p.onTimeline = fn
}

// Run запускает воркеры
func (p *Processor) Run() {
	p.vad.Start()
	p.encoder.Start()
}

// Stop останавливает воркеры. Задачи в очередях отбрасываются.
func (p *Processor) Stop() {
	p.vad.Stop()
	p.encoder.Stop()
}

// Timeline возвращает таймлайн сессии
func (p *Processor) Timeline() *timeline.Timeline {
	return p.tl
}

// Handler возвращает классификатор спикеров
func (p *Processor) Handler() *SpeakerHandler {
	return p.handler
}

// AddChunk принимает очередной чанк с захвата. Чанк всегда попадает в
// кольцевой буфер; анализ идёт только в состоянии running. За один вызов:
// диспетчеризация окна по кадансу, неблокирующий сбор результатов VAD и
// энкодера, троттлированное уведомление UI.
func (p *Processor) AddChunk(chunk []float32) {
	p.window.Push(chunk)
	if !p.tl.IsRunning() {
		return
	}

	p.mu.Lock()
	if time.Since(p.lastDispatch) >= p.cfg.WindowInterval {
		p.lastDispatch = time.Now()
		p.dispatchWindowLocked()
	}
	changed := p.drainVADLocked()
	changed = p.drainEmbedsLocked() || changed
	notify := changed && p.onTimeline != nil && time.Since(p.lastNotify) >= p.cfg.NotifyInterval
	if notify {
		p.lastNotify = time.Now()
	}
	p.mu.Unlock()

	if notify {
		p.onTimeline(p.tl.Segments())
	}
}

// dispatchWindowLocked отправляет текущее окно на VAD. Окна короче
// минимального размера (начало сессии) пропускаются.
func (p *Processor) dispatchWindowLocked() {
	samples := p.window.Snapshot()
	if len(samples) < p.cfg.MinWindowSamples() {
		return
	}
	// Окно покрывает последнюю секунду сессии; в самом начале start
	// может уйти в минус — запросы по диапазонам это переживают
	start := p.tl.Now() - p.cfg.WindowSize
	id, ok := p.vad.Submit(samples)
	if !ok {
		return
	}
	p.pendingVAD[id] = draftSegment{
		start:    start,
		duration: float64(len(samples)) / float64(p.cfg.SampleRate),
		samples:  samples,
	}
}

// drainVADLocked собирает готовые вердикты VAD. Не-речь сразу уходит в
// таймлайн, речь отправляется энкодеру. Результаты с неизвестным ID
// (черновик потерян при Reset) молча отбрасываются.
func (p *Processor) drainVADLocked() bool {
	changed := false
	for {
		select {
		case res := <-p.vad.Results():
			draft, ok := p.pendingVAD[res.ID]
			if !ok {
				continue
			}
			delete(p.pendingVAD, res.ID)
			if res.Err != nil {
				log.Printf("Processor: vad error: %v", res.Err)
				continue
			}
			if !res.IsSpeech {
				p.tl.Add(timeline.NewSegment(draft.start, draft.duration, false))
				changed = true
				continue
			}
			embID, ok := p.encoder.Submit(draft.samples)
			if !ok {
				continue
			}
			p.pendingEmb[embID] = draft
		default:
			return changed
		}
	}
}

// drainEmbedsLocked собирает готовые эмбеддинги, классифицирует и пишет
// речевые сегменты в таймлайн
func (p *Processor) drainEmbedsLocked() bool {
	changed := false
	for {
		select {
		case res := <-p.encoder.Results():
			draft, ok := p.pendingEmb[res.ID]
			if !ok {
				continue
			}
			delete(p.pendingEmb, res.ID)
			if res.Err != nil {
				log.Printf("Processor: encoder error: %v", res.Err)
				continue
			}
			id, _ := p.handler.Classify(res.Embedding, draft.start)
			seg := timeline.NewSegment(draft.start, draft.duration, true)
			seg.Speaker = id
			seg.Embedding = res.Embedding
			p.tl.Add(seg)
			changed = true
		default:
			return changed
		}
	}
}

// Start запускает отсчёт времени сессии
func (p *Processor) Start() {
	p.tl.Start()
}

// Pause приостанавливает сессию. Уже отправленные задачи доработают,
// но их сегменты таймлайн отбросит.
func (p *Processor) Pause() {
	p.tl.Pause()
}

// Resume возобновляет сессию
func (p *Processor) Resume() {
	p.tl.Resume()
}

// Reset возвращает сессию в исходное состояние: таймлайн, классификатор,
// буфер окна и черновики очищаются, состояние VAD сбрасывается.
// Результаты задач, отправленных до сброса, отбросятся по неизвестному ID.
func (p *Processor) Reset() {
	p.mu.Lock()
	p.pendingVAD = make(map[string]draftSegment)
	p.pendingEmb = make(map[string]draftSegment)
	p.mu.Unlock()

	p.window.Reset()
	p.vad.Reset()
	p.tl.Reset()
	p.handler.Reset()
	log.Printf("Processor: session reset")

	if p.onTimeline != nil {
		p.onTimeline(nil)
	}
}

// Recluster перестраивает спикеров методом Уорда и перепривязывает все
// сегменты таймлайна к новым центроидам. target <= 0 сохраняет текущее
// число спикеров. false если эмбеддингов меньше двух.
func (p *Processor) Recluster(target int) bool {
	if !p.handler.Recluster(target) {
		return false
	}
	p.tl.ReclassifyAll(p.handler)
	if p.onTimeline != nil {
		p.onTimeline(p.tl.Segments())
	}
	return true
}
