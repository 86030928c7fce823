package ai

import "testing"

func TestWindowBufferPrefix(t *testing.T) {
	w := NewWindowBuffer(8)
	w.Push([]float32{1, 2, 3})

	got := w.Snapshot()
	if len(got) != 3 {
		t.Fatalf("prefix length = %d, want 3", len(got))
	}
	for i, v := range []float32{1, 2, 3} {
		if got[i] != v {
			t.Errorf("got[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestWindowBufferWrapOrder(t *testing.T) {
	w := NewWindowBuffer(4)
	w.Push([]float32{1, 2, 3, 4})
	w.Push([]float32{5, 6})

	got := w.Snapshot()
	want := []float32{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("snapshot length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v (oldest to newest)", i, got[i], want[i])
		}
	}
}

func TestWindowBufferOversizedChunk(t *testing.T) {
	w := NewWindowBuffer(3)
	w.Push([]float32{1, 2, 3, 4, 5})

	got := w.Snapshot()
	want := []float32{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v (last samples kept)", i, got[i], want[i])
		}
	}
}

func TestWindowBufferSnapshotIsCopy(t *testing.T) {
	w := NewWindowBuffer(4)
	w.Push([]float32{1, 2})
	snap := w.Snapshot()
	snap[0] = 99
	if w.Snapshot()[0] != 1 {
		t.Error("snapshot shares memory with buffer")
	}
}

func TestWindowBufferReset(t *testing.T) {
	w := NewWindowBuffer(4)
	w.Push([]float32{1, 2, 3, 4})
	w.Reset()
	if w.Len() != 0 {
		t.Errorf("Len after Reset = %d", w.Len())
	}
	w.Push([]float32{7})
	got := w.Snapshot()
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("snapshot after reset = %v, want [7]", got)
	}
}
