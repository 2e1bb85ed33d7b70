package webrtc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vtutor/voicesession/rtc"
)

// ToneProvider is a capture provider backed by synthetic sine sources.
// It powers the demo binaries and integration tests on hosts with no
// capture hardware; real deployments inject a platform provider instead.
type ToneProvider struct {
	// Frequency of the generated tone in Hz. Zero means 440.
	Frequency float64

	// Devices overrides the advertised device list. Empty advertises a
	// single default device.
	Devices []rtc.DeviceInfo
}

// ListAudioDevices reports the provider's virtual input devices.
func (p *ToneProvider) ListAudioDevices() ([]rtc.DeviceInfo, error) {
	if len(p.Devices) > 0 {
		devices := make([]rtc.DeviceInfo, len(p.Devices))
		copy(devices, p.Devices)
		return devices, nil
	}
	return []rtc.DeviceInfo{
		{ID: "default", Label: "Synthetic tone input", Default: true},
	}, nil
}

// Open validates the requested device id against the advertised list and
// returns a tone source honoring the constrained sample rate and frame
// pacing. An empty id opens the default device.
func (p *ToneProvider) Open(constraints rtc.CaptureConstraints) (rtc.CaptureSource, error) {
	devices, err := p.ListAudioDevices()
	if err != nil {
		return nil, err
	}

	deviceID := constraints.DeviceID
	if deviceID == "" {
		deviceID = devices[0].ID
		for _, d := range devices {
			if d.Default {
				deviceID = d.ID
				break
			}
		}
	}

	known := false
	for _, d := range devices {
		if d.ID == deviceID {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("device %q: %w", constraints.DeviceID, rtc.ErrDeviceNotFound)
	}

	sampleRate := constraints.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	frequency := p.Frequency
	if frequency == 0 {
		frequency = 440
	}

	return &toneSource{
		deviceID:   deviceID,
		sampleRate: sampleRate,
		frequency:  frequency,
		frameSize:  int(sampleRate / 50), // 20ms frames
		closeCh:    make(chan struct{}),
	}, nil
}

// toneSource produces paced 20ms sine frames.
type toneSource struct {
	mu         sync.Mutex
	deviceID   string
	sampleRate uint32
	frequency  float64
	frameSize  int
	phase      float64
	closed     bool
	closeCh    chan struct{}
}

func (s *toneSource) DeviceID() string { return s.deviceID }

func (s *toneSource) ReadFrame() ([]int16, error) {
	select {
	case <-s.closeCh:
		return nil, rtc.ErrTrackStopped
	case <-time.After(frameDuration):
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, rtc.ErrTrackStopped
	}

	step := 2 * math.Pi * s.frequency / float64(s.sampleRate)
	pcm := make([]int16, s.frameSize)
	for i := range pcm {
		pcm[i] = int16(0.5 * 32767 * math.Sin(s.phase))
		s.phase += step
	}
	if s.phase > 2*math.Pi {
		s.phase -= 2 * math.Pi * math.Floor(s.phase/(2*math.Pi))
	}
	return pcm, nil
}

func (s *toneSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closeCh)
	}
	return nil
}
