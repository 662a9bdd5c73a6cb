package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/lexiqai/voice-character/internal/audio"
)

// Microphone opens the default capture device for each recording
type Microphone struct {
	ctx *Context
}

// NewMicrophone creates a microphone on ctx
func NewMicrophone(ctx *Context) *Microphone {
	return &Microphone{ctx: ctx}
}

// Open initializes and starts the capture device. The device is held
// until the returned stream is closed.
func (m *Microphone) Open(format audio.Format, onData func(pcm []byte)) (audio.Stream, error) {
	if m.ctx == nil || m.ctx.ctx == nil {
		return nil, fmt.Errorf("audio context not initialized")
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", format.BitDepth)
	}

	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16) * format.Channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(format.SampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = uint32(format.Channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency

	device, err := malgo.InitDevice(m.ctx.ctx.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			onData(pInput[:n])
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	return &captureStream{device: device}, nil
}

type captureStream struct {
	mu     sync.Mutex
	device *malgo.Device
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil
	}

	var err error
	if s.device.IsStarted() {
		if stopErr := s.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop capture device: %w", stopErr)
		}
	}
	s.device.Uninit()
	s.device = nil
	return err
}
