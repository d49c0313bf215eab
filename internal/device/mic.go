// Package device wraps the platform microphone and speaker behind the small
// surfaces the voice lab needs. Both are optional: the session runs text-only
// when no devices are available.
package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/lordslab/lordslab/internal/audio"
)

// fallbackCaptureRates are tried in order when the device refuses the
// requested rate. Captured audio is downsampled back to the target rate, so
// only rates above it are candidates.
var fallbackCaptureRates = []int{48000, 44100}

// Mic captures mono float32 audio and delivers fixed-size frames to a
// callback. Frame delivery runs on the platform audio thread; callbacks must
// not block.
type Mic struct {
	allocCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu sync.Mutex
}

// OpenMic opens the default capture device and starts delivering
// frameSamples-sized frames at sampleRateHz to onFrame. When the device
// refuses that rate it is opened at a native rate instead and the capture
// path downsamples. Initialization failure (no device, no permission) is
// returned to the caller; the voice screen surfaces it and never starts the
// session.
func OpenMic(sampleRateHz, frameSamples int, onFrame func([]float32)) (*Mic, error) {
	allocCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	m := &Mic{allocCtx: allocCtx}

	rates := append([]int{sampleRateHz}, fallbackCaptureRates...)
	var lastErr error
	for _, rate := range rates {
		if rate < sampleRateHz {
			continue
		}
		pipe := newCapturePipe(rate, sampleRateHz, frameSamples, onFrame)
		device, err := m.openAt(rate, pipe)
		if err != nil {
			lastErr = err
			continue
		}
		if err := device.Start(); err != nil {
			device.Uninit()
			lastErr = err
			continue
		}
		m.device = device
		if rate != sampleRateHz {
			slog.Info("capture device refused target rate, downsampling",
				"device_rate", rate, "target_rate", sampleRateHz)
		}
		return m, nil
	}

	_ = allocCtx.Uninit()
	allocCtx.Free()
	if lastErr == nil {
		lastErr = errors.New("no usable capture rate")
	}
	return nil, fmt.Errorf("opening microphone: %w", lastErr)
}

func (m *Mic) openAt(rateHz int, pipe *capturePipe) (*malgo.Device, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(rateHz)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			m.mu.Lock()
			pipe.push(pInput)
			m.mu.Unlock()
		},
	}
	return malgo.InitDevice(m.allocCtx.Context, deviceConfig, callbacks)
}

// Close stops capture and releases the device. Errors are swallowed;
// teardown is best effort.
func (m *Mic) Close() {
	if m == nil {
		return
	}
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.allocCtx != nil {
		_ = m.allocCtx.Uninit()
		m.allocCtx.Free()
		m.allocCtx = nil
	}
}

func decodeF32LE(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

// capturePipe turns raw device callbacks into fixed-size frames at the
// target rate, downsampling when the device runs faster.
type capturePipe struct {
	deviceRateHz int
	targetRateHz int
	acc          *frameAccumulator
}

func newCapturePipe(deviceRateHz, targetRateHz, frameSamples int, onFrame func([]float32)) *capturePipe {
	return &capturePipe{
		deviceRateHz: deviceRateHz,
		targetRateHz: targetRateHz,
		acc:          newFrameAccumulator(frameSamples, onFrame),
	}
}

func (p *capturePipe) push(raw []byte) {
	samples := decodeF32LE(raw)
	if p.deviceRateHz != p.targetRateHz {
		samples = audio.Downsample(samples, p.deviceRateHz, p.targetRateHz)
	}
	p.acc.push(samples)
}

// frameAccumulator re-chunks arbitrarily sized capture callbacks into
// fixed-size frames.
type frameAccumulator struct {
	size    int
	onFrame func([]float32)
	buf     []float32
}

func newFrameAccumulator(size int, onFrame func([]float32)) *frameAccumulator {
	if size <= 0 {
		size = 4096
	}
	return &frameAccumulator{size: size, onFrame: onFrame}
}

func (a *frameAccumulator) push(samples []float32) {
	a.buf = append(a.buf, samples...)
	for len(a.buf) >= a.size {
		frame := make([]float32, a.size)
		copy(frame, a.buf[:a.size])
		a.buf = a.buf[a.size:]
		if a.onFrame != nil {
			a.onFrame(frame)
		}
	}
}
