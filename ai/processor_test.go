package ai

import (
	"testing"
	"time"

	"speakline/timeline"
)

type fakeDetector struct {
	speech bool
	resets int
}

func (f *fakeDetector) DetectWindow(samples []float32) (bool, error) { return f.speech, nil }
func (f *fakeDetector) Reset()                                       { f.resets++ }
func (f *fakeDetector) Close() error                                 { return nil }

type fakeEncoder struct {
	emb []float32
}

func (f *fakeEncoder) Embed(samples []float32) ([]float32, error) {
	out := make([]float32, len(f.emb))
	copy(out, f.emb)
	return out, nil
}
func (f *fakeEncoder) Dim() int     { return len(f.emb) }
func (f *fakeEncoder) Close() error { return nil }

func processorConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowInterval = 0 // диспетчеризация на каждом вызове AddChunk
	cfg.NotifyInterval = 0
	return cfg
}

func newTestProcessor(t *testing.T, detector SpeechDetector, encoder VoiceEncoder) *Processor {
	t.Helper()
	cfg := processorConfig()
	tl := timeline.New()
	handler := NewSpeakerHandler(cfg)
	proc := NewProcessor(cfg, tl, handler, detector, encoder)
	proc.Run()
	t.Cleanup(proc.Stop)
	return proc
}

// pump гоняет пустые чанки, давая процессору собрать результаты воркеров
func pump(proc *Processor, cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		proc.AddChunk(nil)
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func oneSecond(cfg Config) []float32 {
	return make([]float32, cfg.WindowSamples())
}

func TestProcessorSpeechSegment(t *testing.T) {
	proc := newTestProcessor(t, &fakeDetector{speech: true}, &fakeEncoder{emb: []float32{1, 0}})
	proc.Start()

	proc.AddChunk(oneSecond(proc.cfg))
	if !pump(proc, func() bool { return proc.Timeline().Len() >= 1 }) {
		t.Fatal("speech segment never reached the timeline")
	}

	segs := proc.Timeline().Segments()
	if !segs[0].IsSpeech {
		t.Error("segment not marked as speech")
	}
	if segs[0].Embedding == nil {
		t.Error("speech segment lost its embedding")
	}
	// Первый эмбеддинг уходит в pending
	if segs[0].Speaker != timeline.SpeakerPending {
		t.Errorf("speaker = %v, want pending", segs[0].Speaker)
	}
	if segs[0].Duration != proc.cfg.WindowSize {
		t.Errorf("duration = %v, want %v", segs[0].Duration, proc.cfg.WindowSize)
	}
}

func TestProcessorSilenceSegment(t *testing.T) {
	proc := newTestProcessor(t, &fakeDetector{speech: false}, &fakeEncoder{emb: []float32{1, 0}})
	proc.Start()

	proc.AddChunk(oneSecond(proc.cfg))
	if !pump(proc, func() bool { return proc.Timeline().Len() >= 1 }) {
		t.Fatal("silence segment never reached the timeline")
	}

	seg := proc.Timeline().Segments()[0]
	if seg.IsSpeech {
		t.Error("silence marked as speech")
	}
	if seg.Speaker != timeline.SpeakerNone {
		t.Errorf("speaker = %v, want none", seg.Speaker)
	}
	if seg.Embedding != nil {
		t.Error("silence segment has an embedding")
	}
}

func TestProcessorIgnoresAudioWhenStopped(t *testing.T) {
	proc := newTestProcessor(t, &fakeDetector{speech: true}, &fakeEncoder{emb: []float32{1, 0}})

	proc.AddChunk(oneSecond(proc.cfg))
	time.Sleep(50 * time.Millisecond)
	if proc.Timeline().Len() != 0 {
		t.Error("segments appeared before Start")
	}
}

func TestProcessorShortPrefixSkipped(t *testing.T) {
	proc := newTestProcessor(t, &fakeDetector{speech: true}, &fakeEncoder{emb: []float32{1, 0}})
	proc.Start()

	// Четверть секунды: меньше минимального окна, анализа быть не должно
	proc.AddChunk(make([]float32, proc.cfg.SampleRate/4))
	time.Sleep(50 * time.Millisecond)
	proc.AddChunk(nil)
	if proc.Timeline().Len() != 0 {
		t.Error("short prefix was analyzed")
	}
}

func TestProcessorResetDropsInflightResults(t *testing.T) {
	proc := newTestProcessor(t, &fakeDetector{speech: true}, &fakeEncoder{emb: []float32{1, 0}})
	proc.Start()

	// Задача уходит воркеру, затем сброс теряет черновик
	proc.AddChunk(oneSecond(proc.cfg))
	proc.Reset()
	proc.Start()

	// Результаты старой задачи приходят с неизвестным ID и отбрасываются
	time.Sleep(100 * time.Millisecond)
	proc.AddChunk(nil)
	time.Sleep(50 * time.Millisecond)
	proc.AddChunk(nil)
	if n := proc.Timeline().Len(); n != 0 {
		t.Errorf("%d stale segments survived reset", n)
	}
}

func TestProcessorResetClearsState(t *testing.T) {
	detector := &fakeDetector{speech: true}
	proc := newTestProcessor(t, detector, &fakeEncoder{emb: []float32{1, 0}})
	proc.Start()

	proc.AddChunk(oneSecond(proc.cfg))
	pump(proc, func() bool { return proc.Timeline().Len() >= 1 })

	proc.Reset()
	if proc.Timeline().Started() {
		t.Error("timeline still started after reset")
	}
	if proc.Handler().PendingCount() != 0 || len(proc.Handler().ActiveSpeakers()) != 0 {
		t.Error("handler state survived reset")
	}
	if detector.resets == 0 {
		t.Error("detector state not reset")
	}
}

func TestProcessorNotifyCallback(t *testing.T) {
	proc := newTestProcessor(t, &fakeDetector{speech: false}, &fakeEncoder{emb: []float32{1, 0}})

	notified := make(chan int, 16)
	proc.SetTimelineCallback(func(segs []timeline.Segment) {
		notified <- len(segs)
	})
	proc.Start()

	proc.AddChunk(oneSecond(proc.cfg))
	if !pump(proc, func() bool { return len(notified) > 0 }) {
		t.Fatal("timeline callback never fired")
	}
}

func TestProcessorPause(t *testing.T) {
	proc := newTestProcessor(t, &fakeDetector{speech: false}, &fakeEncoder{emb: []float32{1, 0}})
	proc.Start()
	proc.Pause()

	// На паузе окна не диспетчеризуются и сегменты не добавляются
	proc.AddChunk(oneSecond(proc.cfg))
	time.Sleep(50 * time.Millisecond)
	proc.AddChunk(nil)
	if proc.Timeline().Len() != 0 {
		t.Error("segments added while paused")
	}

	proc.Resume()
	proc.AddChunk(oneSecond(proc.cfg))
	if !pump(proc, func() bool { return proc.Timeline().Len() >= 1 }) {
		t.Fatal("no segments after resume")
	}
}
