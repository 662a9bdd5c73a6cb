package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lexiqai/voice-character/internal/audio"
)

const drainPoll = 10 * time.Millisecond

// Speaker plays 16-bit mono PCM on the default playback device
type Speaker struct {
	ctx    *Context
	rate   int
	buffer *audio.RingBuffer

	mu     sync.Mutex
	device *malgo.Device
}

// NewSpeaker creates a speaker playing at sampleRate. The device is
// opened on the first Play.
func NewSpeaker(ctx *Context, sampleRate int) *Speaker {
	return &Speaker{
		ctx:    ctx,
		rate:   sampleRate,
		buffer: audio.NewRingBuffer(sampleRate * 2), // ~1s of audio
	}
}

// SampleRate returns the device rate
func (s *Speaker) SampleRate() int {
	return s.rate
}

func (s *Speaker) ensureStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return nil
	}
	if s.ctx == nil || s.ctx.ctx == nil {
		return fmt.Errorf("audio context not initialized")
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(s.rate)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(s.rate / 50) // 20ms
	config.Periods = 4

	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16)
	device, err := malgo.InitDevice(s.ctx.ctx.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n > len(pOutput) {
				n = len(pOutput)
			}
			s.buffer.ReadPadded(pOutput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	s.device = device
	return nil
}

// Play queues pcm at sampleRate and blocks until it has been handed to the
// device. Cancelling ctx drops whatever is still queued.
func (s *Speaker) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := s.ensureStarted(); err != nil {
		return err
	}

	if sampleRate != s.rate {
		converted, err := audio.ConvertSampleRate(pcm, sampleRate, s.rate)
		if err != nil {
			return fmt.Errorf("failed to resample speech: %w", err)
		}
		pcm = converted
	}

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for len(pcm) > 0 {
		n := s.buffer.Write(pcm)
		pcm = pcm[n:]
		if len(pcm) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			s.buffer.Clear()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	for !s.buffer.IsEmpty() {
		select {
		case <-ctx.Done():
			s.buffer.Clear()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops and releases the playback device
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return
	}
	_ = s.device.Stop()
	s.device.Uninit()
	s.device = nil
	s.buffer.Clear()
}
