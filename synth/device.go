package synth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	goerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/metronome/logger"
	"github.com/sirupsen/logrus"
)

var ErrDeviceUnavailable = errors.New("audio device unavailable")

// backend is the subset of the speaker package the Device drives.
type backend interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Close()
}

type speakerBackend struct{}

func (speakerBackend) Init(sr beep.SampleRate, bufferSize int) error { return speaker.Init(sr, bufferSize) }
func (speakerBackend) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerBackend) Close() { speaker.Close() }

// Device is the process-wide audio output. It opens the speaker on first use and can be closed
// and reopened.
type Device struct {
	mu         sync.Mutex
	backend    backend
	sampleRate beep.SampleRate
	bufferSize time.Duration
	open       bool

	// failed holds the last open error so a missing device is not probed on every click.
	failed error
}

var (
	defaultDevice     *Device
	defaultDeviceOnce sync.Once
)

// DefaultDevice returns the shared speaker device.
func DefaultDevice() *Device {
	defaultDeviceOnce.Do(func() {
		defaultDevice = newDevice(speakerBackend{}, 44100, 10*time.Millisecond)
	})
	return defaultDevice
}

func newDevice(b backend, sr beep.SampleRate, bufferSize time.Duration) *Device {
	return &Device{
		backend:    b,
		sampleRate: sr,
		bufferSize: bufferSize,
	}
}

// Init opens the device with the given format. It does nothing if the device is already open.
func (d *Device) Init(sr beep.SampleRate, bufferSize time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return nil
	}
	d.sampleRate = sr
	d.bufferSize = bufferSize
	d.failed = nil
	return d.openLocked()
}

func (d *Device) openLocked() error {
	if d.failed != nil {
		return d.failed
	}

	if err := d.backend.Init(d.sampleRate, d.sampleRate.N(d.bufferSize)); err != nil {
		d.failed = goerrors.WithStackTrace(fmt.Errorf("%w: %v", ErrDeviceUnavailable, err))
		return d.failed
	}

	d.open = true
	logger.GetProjectLogger().WithFields(logrus.Fields{
		"sample_rate": int(d.sampleRate),
		"buffer":      d.bufferSize,
	}).Debug("Audio device opened")
	return nil
}

// Play hands s to the mixer and returns immediately, opening the device first if needed.
func (d *Device) Play(s beep.Streamer) error {
	d.mu.Lock()
	if !d.open {
		if err := d.openLocked(); err != nil {
			d.mu.Unlock()
			return err
		}
	}
	d.mu.Unlock()

	d.backend.Play(s)
	return nil
}

func (d *Device) SampleRate() beep.SampleRate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

// Close releases the device. A later Play or Init opens it again.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failed = nil
	if !d.open {
		return
	}
	d.backend.Close()
	d.open = false
}
