package ai

import (
	"math"
	"testing"

	"speakline/timeline"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinClusterSize = 3
	return cfg
}

// embAt возвращает единичный вектор под углом angle (радианы) в 2D
func embAt(angle float64) []float32 {
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
}

type fakeRelabeler struct {
	calls int
	start float64
	end   float64
	id    timeline.SpeakerID
}

func (f *fakeRelabeler) RelabelPending(start, end float64, id timeline.SpeakerID) int {
	f.calls++
	f.start, f.end, f.id = start, end, id
	return 0
}

func TestFirstEmbeddingGoesPending(t *testing.T) {
	h := NewSpeakerHandler(testConfig())

	id, sim := h.Classify(embAt(0), 0)
	if id != timeline.SpeakerPending {
		t.Errorf("Classify = %v, want pending", id)
	}
	if sim != 0 {
		t.Errorf("similarity = %v, want 0", sim)
	}
	if h.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", h.PendingCount())
	}
	if len(h.ActiveSpeakers()) != 0 {
		t.Error("speaker created from a single embedding")
	}
}

func TestPendingDisabledCreatesSpeakerZero(t *testing.T) {
	h := NewSpeakerHandler(testConfig())
	h.TogglePending()

	id, sim := h.Classify(embAt(0), 0)
	if id != 0 || sim != 1.0 {
		t.Errorf("Classify = (%v, %v), want (0, 1.0)", id, sim)
	}
	if got := h.ActiveSpeakers(); len(got) != 1 || got[0] != 0 {
		t.Errorf("ActiveSpeakers = %v, want [0]", got)
	}
}

func TestPromotionAfterCohesiveGroup(t *testing.T) {
	h := NewSpeakerHandler(testConfig())
	rel := &fakeRelabeler{}
	h.SetRelabeler(rel)

	for i := 0; i < 3; i++ {
		id, _ := h.Classify(embAt(0.01*float64(i)), float64(10+i))
		if i < 2 && id != timeline.SpeakerPending {
			t.Fatalf("embedding %d: got %v before promotion", i, id)
		}
	}

	if got := h.ActiveSpeakers(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("ActiveSpeakers after promotion = %v, want [0]", got)
	}
	if h.PendingCount() != 0 {
		t.Errorf("pending buffer not flushed: %d", h.PendingCount())
	}
	if h.MemberCount(0) != 3 {
		t.Errorf("MemberCount(0) = %d, want 3", h.MemberCount(0))
	}
	if rel.calls != 1 {
		t.Fatalf("relabeler calls = %d, want 1", rel.calls)
	}
	if rel.start != 10 || rel.end != 12 || rel.id != 0 {
		t.Errorf("relabel range = [%v, %v] -> %v, want [10, 12] -> 0", rel.start, rel.end, rel.id)
	}
}

func TestPromotionFlushesOutliers(t *testing.T) {
	h := NewSpeakerHandler(testConfig())

	// Чередуем две далёкие группы: A по оси X, B по оси Y.
	// Когезивной группа A становится на пятом эмбеддинге (3 из 5).
	angles := []float64{0, math.Pi / 2, 0.01, math.Pi/2 + 0.01, 0.02}
	for i, a := range angles {
		h.Classify(embAt(a), float64(i))
	}

	if got := h.ActiveSpeakers(); len(got) != 1 {
		t.Fatalf("ActiveSpeakers = %v, want one promoted speaker", got)
	}
	if h.MemberCount(0) != 3 {
		t.Errorf("MemberCount(0) = %d, want 3 (cohesive group only)", h.MemberCount(0))
	}
	// Промоушен очищает буфер целиком, включая чужую группу
	if h.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0 after full flush", h.PendingCount())
	}
}

func TestNoPromotionWithoutCohesion(t *testing.T) {
	cfg := testConfig()
	cfg.MinClusterSize = 4
	h := NewSpeakerHandler(cfg)

	// 3+3 по ортогональным осям: максимальный кластер 3 < 4
	for i := 0; i < 6; i++ {
		angle := 0.01 * float64(i)
		if i%2 == 1 {
			angle += math.Pi / 2
		}
		h.Classify(embAt(angle), float64(i))
	}

	if len(h.ActiveSpeakers()) != 0 {
		t.Errorf("promotion without cohesive group: %v", h.ActiveSpeakers())
	}
	if h.PendingCount() != 6 {
		t.Errorf("PendingCount = %d, want 6", h.PendingCount())
	}
}

func TestConfidentAndWeakMatch(t *testing.T) {
	h := NewSpeakerHandler(testConfig())
	h.TogglePending()
	// Замораживаем центроид, чтобы пороги сравнивались с {1, 0}
	h.ToggleEmbeddingUpdate()

	h.Classify(embAt(0), 0) // спикер 0, центроид {1, 0}

	// Уверенный матч: cos 0.8 >= 0.5, список пополняется
	id, sim := h.Classify(embAt(math.Acos(0.8)), 1)
	if id != 0 {
		t.Errorf("confident match id = %v, want 0", id)
	}
	if sim < 0.79 || sim > 0.81 {
		t.Errorf("similarity = %v, want ~0.8", sim)
	}
	if h.MemberCount(0) != 2 {
		t.Errorf("MemberCount = %d, want 2", h.MemberCount(0))
	}

	// Слабый матч: cos 0.45 в [0.4, 0.5), принимается без пополнения
	id, _ = h.Classify(embAt(math.Acos(0.45)), 2)
	if id != 0 {
		t.Errorf("weak match id = %v, want 0", id)
	}
	if h.MemberCount(0) != 2 {
		t.Errorf("weak match updated members: %d", h.MemberCount(0))
	}
}

func TestForcedAttachAtCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSpeakers = 1
	h := NewSpeakerHandler(cfg)
	h.TogglePending()

	h.Classify(embAt(0), 0)

	// Ортогональный голос: ниже обоих порогов, но новых спикеров нельзя
	id, sim := h.Classify(embAt(math.Pi/2), 1)
	if id != 0 {
		t.Errorf("forced attach id = %v, want 0", id)
	}
	if sim > 0.1 {
		t.Errorf("similarity = %v, want ~0", sim)
	}
	if h.PendingCount() != 0 {
		t.Error("embedding buffered despite speaker cap")
	}
}

func TestPendingDisabledPermanentlyAtCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSpeakers = 1
	cfg.MinClusterSize = 2
	h := NewSpeakerHandler(cfg)

	// Промоушен занимает единственный слот
	h.Classify(embAt(0), 0)
	h.Classify(embAt(0.01), 1)
	if got := h.ActiveSpeakers(); len(got) != 1 {
		t.Fatalf("ActiveSpeakers = %v", got)
	}

	// Дальше всё прибивается к существующему спикеру
	id, _ := h.Classify(embAt(math.Pi/2), 2)
	if id != 0 {
		t.Errorf("post-cap id = %v, want 0", id)
	}
}

func TestRecluster(t *testing.T) {
	h := NewSpeakerHandler(testConfig())

	// Два голоса, каждый проходит через промоушен
	for i := 0; i < 3; i++ {
		h.Classify(embAt(0.01*float64(i)), float64(i))
	}
	for i := 0; i < 3; i++ {
		h.Classify(embAt(math.Pi/2+0.01*float64(i)), float64(3+i))
	}
	if len(h.ActiveSpeakers()) != 2 {
		t.Fatalf("setup: ActiveSpeakers = %v", h.ActiveSpeakers())
	}

	if !h.Recluster(0) {
		t.Fatal("Recluster failed")
	}
	if got := h.ActiveSpeakers(); len(got) != 2 {
		t.Fatalf("ActiveSpeakers after recluster = %v, want 2 speakers", got)
	}

	idA, _ := h.BestMatch(embAt(0))
	idB, _ := h.BestMatch(embAt(math.Pi / 2))
	if idA == idB {
		t.Error("recluster did not separate the two voices")
	}
}

func TestReclusterNeedsTwoEmbeddings(t *testing.T) {
	h := NewSpeakerHandler(testConfig())
	if h.Recluster(2) {
		t.Error("Recluster succeeded with no embeddings")
	}
	h.Classify(embAt(0), 0)
	if h.Recluster(2) {
		t.Error("Recluster succeeded with one embedding")
	}
}

func TestBestMatchEmpty(t *testing.T) {
	h := NewSpeakerHandler(testConfig())
	id, _ := h.BestMatch(embAt(0))
	if id != timeline.SpeakerNone {
		t.Errorf("BestMatch on empty handler = %v, want none", id)
	}
}

func TestHandlerReset(t *testing.T) {
	cfg := testConfig()
	cfg.MinClusterSize = 2
	h := NewSpeakerHandler(cfg)

	h.Classify(embAt(0), 0)
	h.Classify(embAt(0.01), 1)
	h.TogglePending() // выключаем

	h.Reset()

	if len(h.ActiveSpeakers()) != 0 || h.PendingCount() != 0 {
		t.Error("state survived Reset")
	}
	if !h.PendingEnabled() {
		t.Error("pending mode not re-enabled by Reset")
	}
	if h.TotalEmbeddings() != 0 {
		t.Errorf("TotalEmbeddings = %d after Reset", h.TotalEmbeddings())
	}
}

func TestAllEmbeddings(t *testing.T) {
	h := NewSpeakerHandler(testConfig())
	h.Classify(embAt(0), 0) // pending

	embs, labels := h.AllEmbeddings()
	if len(embs) != 1 || len(labels) != 1 {
		t.Fatalf("AllEmbeddings = %d embs, %d labels", len(embs), len(labels))
	}
	if labels[0] != -1 {
		t.Errorf("pending label = %d, want -1", labels[0])
	}
}
