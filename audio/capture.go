// Package audio предоставляет источники аудио 16kHz mono float32:
// захват с микрофона через miniaudio и чтение MP3 файлов
package audio

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// Device описание аудио устройства для UI
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// Capture захват аудио с микрофона: 16kHz, mono, float32.
// Чанки уходят в буферизованный канал Data; устройство можно менять
// на лету без пересоздания контекста.
type Capture struct {
	ctx *malgo.AllocatedContext

	mu       sync.Mutex
	device   *malgo.Device
	deviceID *malgo.DeviceID
	running  bool

	dataChan chan []float32

	sampleRate int
}

// NewCapture инициализирует miniaudio контекст. Захват не стартует.
func NewCapture(sampleRate int) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	return &Capture{
		ctx:        ctx,
		dataChan:   make(chan []float32, 256),
		sampleRate: sampleRate,
	}, nil
}

// ListDevices возвращает доступные устройства захвата
func (c *Capture) ListDevices() ([]Device, error) {
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:      deviceIDToString(info.ID),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// SetDevice переключает устройство захвата. Пустой ID или "default" —
// устройство по умолчанию. Если захват идёт, устройство пересоздаётся
// на лету; канал данных переживает переключение.
func (c *Capture) SetDevice(deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deviceID == "" || deviceID == "default" {
		c.deviceID = nil
	} else {
		id, err := stringToDeviceID(deviceID)
		if err != nil {
			return err
		}
		c.deviceID = id
	}

	if !c.running {
		return nil
	}
	c.stopDeviceLocked()
	if err := c.startDeviceLocked(); err != nil {
		c.running = false
		return fmt.Errorf("failed to restart capture on new device: %w", err)
	}
	log.Printf("Capture: switched to device %q", deviceID)
	return nil
}

// Start запускает захват
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("capture already running")
	}
	if err := c.startDeviceLocked(); err != nil {
		return err
	}
	c.running = true
	return nil
}

func (c *Capture) startDeviceLocked() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if c.deviceID != nil {
		deviceConfig.Capture.DeviceID = c.deviceID.Pointer()
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		sampleCount := int(framecount)
		if len(pInputSamples) != sampleCount*4 {
			return
		}
		samples := make([]float32, sampleCount)
		for i := 0; i < sampleCount; i++ {
			bits := uint32(pInputSamples[i*4]) | uint32(pInputSamples[i*4+1])<<8 |
				uint32(pInputSamples[i*4+2])<<16 | uint32(pInputSamples[i*4+3])<<24
			samples[i] = math.Float32frombits(bits)
		}
		// Неблокирующая отправка: захват важнее хвоста буфера,
		// блокировка коллбэка miniaudio рвёт аудио тракт
		select {
		case c.dataChan <- samples:
		default:
		}
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("failed to init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.device = device
	log.Println("Microphone capture started")
	return nil
}

func (c *Capture) stopDeviceLocked() {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
}

// Stop останавливает захват. Данные в канале остаются читателю.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.stopDeviceLocked()
	c.running = false
	log.Println("Microphone capture stopped")
}

// IsRunning true если захват активен
func (c *Capture) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Data возвращает канал чанков аудио
func (c *Capture) Data() <-chan []float32 {
	return c.dataChan
}

// ClearBuffer выбрасывает накопленные чанки. Вызывается при сбросе сессии,
// чтобы старое аудио не попало в новую.
func (c *Capture) ClearBuffer() {
	for {
		select {
		case <-c.dataChan:
		default:
			return
		}
	}
}

// Close освобождает ресурсы
func (c *Capture) Close() {
	c.Stop()
	if c.ctx != nil {
		c.ctx.Uninit()
		c.ctx.Free()
	}
}

func deviceIDToString(id malgo.DeviceID) string {
	var b strings.Builder
	for _, ch := range id[:32] {
		if ch == 0 {
			break
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func stringToDeviceID(s string) (*malgo.DeviceID, error) {
	if len(s) > 32 {
		return nil, fmt.Errorf("device ID too long")
	}
	var id malgo.DeviceID
	copy(id[:], s)
	return &id, nil
}
