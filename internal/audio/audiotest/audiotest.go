// Package audiotest provides a manual clock and a scripted input device for
// testing capture timing without real time or hardware.
package audiotest

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lexiqai/voice-character/internal/audio"
)

// FakeClock only moves when Advance is called. Timers due within an
// advance fire in deadline order, each seeing Now() equal to its deadline.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Time
	f       func()
	fired   bool
	stopped bool
}

// NewFakeClock starts the clock at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) audio.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers synchronously
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })

		var next *fakeTimer
		for _, t := range c.timers {
			if !t.fired && !t.stopped && !t.at.After(target) {
				next = t
				break
			}
		}
		if next == nil {
			break
		}

		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of timers that have neither fired nor stopped
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// ErrNoMicrophone is a typical device acquisition failure
var ErrNoMicrophone = errors.New("no microphone found")

// FakeDevice is an input device whose audio is pushed by the test
type FakeDevice struct {
	mu      sync.Mutex
	openErr error
	onData  func([]byte)
	open    bool
	opens   int
	closes  int
}

// NewFakeDevice creates a device that opens successfully
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

// FailOpen makes the next and all later Open calls fail with err
func (d *FakeDevice) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

func (d *FakeDevice) Open(format audio.Format, onData func([]byte)) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.open = true
	d.opens++
	d.onData = onData
	return &fakeStream{device: d}, nil
}

// Feed delivers pcm to the open stream; it is dropped when the device is closed
func (d *FakeDevice) Feed(pcm []byte) {
	d.mu.Lock()
	onData := d.onData
	open := d.open
	d.mu.Unlock()
	if open && onData != nil {
		onData(pcm)
	}
}

// IsOpen reports whether a stream currently holds the device
func (d *FakeDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Opens returns how many times the device was opened
func (d *FakeDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes returns how many times a stream was closed
func (d *FakeDevice) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type fakeStream struct {
	device *FakeDevice
	once   sync.Once
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		s.device.mu.Lock()
		s.device.open = false
		s.device.onData = nil
		s.device.closes++
		s.device.mu.Unlock()
	})
	return nil
}

// Tone returns d of a loud square wave as 16-bit mono PCM at rate
func Tone(d time.Duration, rate int) []byte {
	n := int(d * time.Duration(rate) / time.Second)
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(8000)
		if (i/20)%2 == 1 {
			v = -8000
		}
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(uint16(v) >> 8)
	}
	return pcm
}

// Silence returns d of zero samples as 16-bit mono PCM at rate
func Silence(d time.Duration, rate int) []byte {
	n := int(d * time.Duration(rate) / time.Second)
	return make([]byte, n*2)
}
