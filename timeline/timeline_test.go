package timeline

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNowBeforeStart(t *testing.T) {
	tl := New()
	if got := tl.Now(); got != 0 {
		t.Errorf("Now() before start = %v, want 0", got)
	}
	if tl.IsRunning() {
		t.Error("timeline should not be running before Start")
	}
}

func TestPauseFreezesTime(t *testing.T) {
	tl := New()
	tl.Start()
	time.Sleep(20 * time.Millisecond)
	tl.Pause()

	t1 := tl.Now()
	time.Sleep(30 * time.Millisecond)
	t2 := tl.Now()

	if t1 != t2 {
		t.Errorf("time advanced during pause: %v != %v", t1, t2)
	}

	tl.Resume()
	time.Sleep(20 * time.Millisecond)
	if tl.Now() <= t2 {
		t.Error("time did not advance after resume")
	}
}

func TestPausedTimeExcluded(t *testing.T) {
	tl := New()
	tl.Start()
	time.Sleep(20 * time.Millisecond)
	tl.Pause()
	time.Sleep(50 * time.Millisecond)
	tl.Resume()

	// Пауза в 50ms не должна попасть во время сессии
	if now := tl.Now(); now > 0.045 {
		t.Errorf("Now() = %v, pause duration leaked into session time", now)
	}
}

func TestAddOnlyWhileRunning(t *testing.T) {
	tl := New()
	seg := NewSegment(0, 1, true)

	if tl.Add(seg) {
		t.Error("Add before Start should be rejected")
	}

	tl.Start()
	if !tl.Add(seg) {
		t.Error("Add while running should be accepted")
	}

	tl.Pause()
	if tl.Add(seg) {
		t.Error("Add while paused should be rejected")
	}

	tl.Resume()
	if !tl.Add(seg) {
		t.Error("Add after resume should be accepted")
	}

	if tl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tl.Len())
	}
}

func TestStartIsIdempotent(t *testing.T) {
	tl := New()
	tl.Start()
	time.Sleep(20 * time.Millisecond)
	before := tl.Now()
	tl.Start()
	if tl.Now() < before {
		t.Error("repeated Start rewound session time")
	}
}

func TestRelabelPendingBounds(t *testing.T) {
	tl := New()
	tl.Start()

	starts := []float64{1.0, 2.0, 3.0, 4.0}
	for _, s := range starts {
		seg := NewSegment(s, 1, true)
		seg.Speaker = SpeakerPending
		tl.Add(seg)
	}
	// Уже назначенный сегмент внутри диапазона не трогается
	assigned := NewSegment(2.5, 1, true)
	assigned.Speaker = 0
	tl.Add(assigned)

	n := tl.RelabelPending(2.0, 3.0, 1)
	if n != 2 {
		t.Fatalf("RelabelPending = %d, want 2 (inclusive bounds)", n)
	}

	for _, seg := range tl.Segments() {
		switch seg.Start {
		case 2.0, 3.0:
			if seg.Speaker != 1 {
				t.Errorf("segment at %v: speaker = %v, want 1", seg.Start, seg.Speaker)
			}
		case 1.0, 4.0:
			if seg.Speaker != SpeakerPending {
				t.Errorf("segment at %v relabeled outside bounds", seg.Start)
			}
		case 2.5:
			if seg.Speaker != 0 {
				t.Errorf("assigned segment at 2.5 was relabeled to %v", seg.Speaker)
			}
		}
	}
}

func TestSpeakerAtFirstWins(t *testing.T) {
	tl := New()
	tl.Start()

	a := NewSegment(0, 2, true)
	a.Speaker = 0
	b := NewSegment(1, 2, true)
	b.Speaker = 1
	tl.Add(a)
	tl.Add(b)
	tl.Add(NewSegment(5, 1, false))

	if got := tl.SpeakerAt(1.5); got != 0 {
		t.Errorf("SpeakerAt(1.5) = %v, want 0 (first in order)", got)
	}
	if got := tl.SpeakerAt(2.5); got != 1 {
		t.Errorf("SpeakerAt(2.5) = %v, want 1", got)
	}
	if got := tl.SpeakerAt(5.5); got != SpeakerNone {
		t.Errorf("SpeakerAt in non-speech = %v, want none", got)
	}
	if got := tl.SpeakerAt(100); got != SpeakerNone {
		t.Errorf("SpeakerAt outside timeline = %v, want none", got)
	}
}

func TestDominantSpeakerInRange(t *testing.T) {
	tl := New()
	tl.Start()

	// Спикер 0: перекрытие 3.0s суммарно, спикер 1: 1.5s
	for _, s := range []struct {
		start, dur float64
		id         SpeakerID
	}{
		{0, 2, 0},
		{4, 1, 0},
		{2, 1.5, 1},
		{6, 2, SpeakerPending}, // pending не учитывается
	} {
		seg := NewSegment(s.start, s.dur, true)
		seg.Speaker = s.id
		tl.Add(seg)
	}

	if got := tl.DominantSpeakerInRange(0, 8); got != 0 {
		t.Errorf("DominantSpeakerInRange = %v, want 0", got)
	}
	if got := tl.DominantSpeakerInRange(2, 3.5); got != 1 {
		t.Errorf("DominantSpeakerInRange(2, 3.5) = %v, want 1", got)
	}
	if got := tl.DominantSpeakerInRange(20, 30); got != SpeakerNone {
		t.Errorf("DominantSpeakerInRange outside = %v, want none", got)
	}
}

// fakeClassifier назначает по первому компоненту эмбеддинга
type fakeClassifier struct{}

func (fakeClassifier) BestMatch(emb []float32) (SpeakerID, float64) {
	if emb[0] > 0 {
		return 0, 0.9
	}
	return 1, 0.9
}

func TestReclassifyAll(t *testing.T) {
	tl := New()
	tl.Start()

	a := NewSegment(0, 1, true)
	a.Speaker = SpeakerPending
	a.Embedding = []float32{1, 0}
	b := NewSegment(1, 1, true)
	b.Speaker = 0
	b.Embedding = []float32{-1, 0}
	noEmb := NewSegment(2, 1, true)
	noEmb.Speaker = 0
	tl.Add(a)
	tl.Add(b)
	tl.Add(noEmb)

	n := tl.ReclassifyAll(fakeClassifier{})
	if n != 2 {
		t.Fatalf("ReclassifyAll = %d, want 2", n)
	}

	segs := tl.Segments()
	if segs[0].Speaker != 0 {
		t.Errorf("segment 0: speaker = %v, want 0", segs[0].Speaker)
	}
	if segs[1].Speaker != 1 {
		t.Errorf("segment 1: speaker = %v, want 1", segs[1].Speaker)
	}
	if segs[2].Speaker != 0 {
		t.Errorf("segment without embedding changed: %v", segs[2].Speaker)
	}
}

func TestReset(t *testing.T) {
	tl := New()
	tl.Start()
	tl.Add(NewSegment(0, 1, true))
	tl.Reset()

	if tl.Len() != 0 {
		t.Error("segments survived Reset")
	}
	if tl.Started() {
		t.Error("timeline still started after Reset")
	}
	if tl.Add(NewSegment(0, 1, true)) {
		t.Error("Add accepted after Reset without Start")
	}
}

func TestSpeakerIDJSON(t *testing.T) {
	cases := []struct {
		id   SpeakerID
		want string
	}{
		{SpeakerNone, "null"},
		{SpeakerPending, `"pending"`},
		{3, "3"},
	}
	for _, c := range cases {
		data, err := json.Marshal(c.id)
		if err != nil {
			t.Fatalf("marshal %v: %v", c.id, err)
		}
		if string(data) != c.want {
			t.Errorf("marshal %v = %s, want %s", c.id, data, c.want)
		}

		var back SpeakerID
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != c.id {
			t.Errorf("roundtrip %v -> %v", c.id, back)
		}
	}
}

func TestSegmentOverlap(t *testing.T) {
	seg := NewSegment(1, 2, true) // [1, 3]

	cases := []struct {
		a, b, want float64
	}{
		{0, 4, 2},
		{1.5, 2.5, 1},
		{0, 1.5, 0.5},
		{3, 5, 0},
		{-1, 0, 0},
	}
	for _, c := range cases {
		if got := seg.Overlap(c.a, c.b); got != c.want {
			t.Errorf("Overlap(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
