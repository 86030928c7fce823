package ai

import "sync"

// WindowBuffer кольцевой буфер сэмплов фиксированного размера для
// скользящего окна анализа. Push пишет чанки по мере прихода с захвата,
// Snapshot отдаёт окно в хронологическом порядке (старые -> новые).
// Пока буфер не заполнился, Snapshot возвращает накопленный префикс.
type WindowBuffer struct {
	mu     sync.Mutex
	buf    []float32
	pos    int // позиция следующей записи
	filled int // сколько сэмплов реально записано, <= len(buf)
}

// NewWindowBuffer создаёт буфер на size сэмплов
func NewWindowBuffer(size int) *WindowBuffer {
	return &WindowBuffer{buf: make([]float32, size)}
}

// Push дописывает чанк в буфер, затирая самые старые сэмплы.
// Чанк длиннее буфера усечётся до последних len(buf) сэмплов.
func (w *WindowBuffer) Push(chunk []float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(chunk) >= len(w.buf) {
		copy(w.buf, chunk[len(chunk)-len(w.buf):])
		w.pos = 0
		w.filled = len(w.buf)
		return
	}
	for _, s := range chunk {
		w.buf[w.pos] = s
		w.pos = (w.pos + 1) % len(w.buf)
	}
	w.filled += len(chunk)
	if w.filled > len(w.buf) {
		w.filled = len(w.buf)
	}
}

// Snapshot возвращает копию содержимого в хронологическом порядке.
// До заполнения буфера — только записанный префикс.
func (w *WindowBuffer) Snapshot() []float32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float32, w.filled)
	if w.filled < len(w.buf) {
		copy(out, w.buf[:w.filled])
		return out
	}
	// Буфер полный: самый старый сэмпл на позиции pos
	n := copy(out, w.buf[w.pos:])
	copy(out[n:], w.buf[:w.pos])
	return out
}

// Len текущее количество накопленных сэмплов
func (w *WindowBuffer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filled
}

// Reset очищает буфер
func (w *WindowBuffer) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = 0
	w.filled = 0
}
