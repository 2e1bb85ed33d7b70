package level

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vtutor/voicesession/rtc"
)

// DefaultRefreshInterval approximates a 60 Hz display refresh cadence.
const DefaultRefreshInterval = 16 * time.Millisecond

// Meter drives continuous loudness estimation for a remote audio track.
//
// Once attached to a track it runs a self-perpetuating refresh loop that
// recomputes the normalized level on every tick. The loop has no stop
// condition of its own; the owner must call Stop (the manager does this
// from Cleanup), which cancels the loop and the track tap deterministically.
// At most one refresh loop is active per meter.
type Meter struct {
	mu        sync.Mutex
	analyser  *Analyser
	interval  time.Duration
	level     float64
	stopCh    chan struct{}
	cancelTap func()
	running   bool
}

// NewMeter creates a meter with the given refresh interval. A non-positive
// interval uses DefaultRefreshInterval.
func NewMeter(interval time.Duration) *Meter {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	return &Meter{
		analyser: NewAnalyser(DefaultFFTSize),
		interval: interval,
	}
}

// Attach taps the remote track's decoded PCM stream and starts the refresh
// loop if it is not already running. Re-attaching to a new track replaces
// the previous tap.
func (m *Meter) Attach(track rtc.RemoteTrack) {
	if track == nil {
		return
	}

	m.mu.Lock()
	if m.cancelTap != nil {
		m.cancelTap()
	}
	m.analyser.Reset()
	m.cancelTap = track.OnPCM(func(pcm []int16, sampleRate uint32) {
		m.analyser.Write(pcm)
	})

	if !m.running {
		m.running = true
		m.stopCh = make(chan struct{})
		go m.loop(m.stopCh)
	}
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Meter.Attach",
		"track_id": track.ID(),
		"interval": m.interval,
	}).Info("Level metering attached to remote track")
}

// loop recomputes the level each refresh tick until cancelled.
func (m *Meter) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			value := m.analyser.Level()
			m.mu.Lock()
			m.level = value
			m.mu.Unlock()
		}
	}
}

// Level returns the most recent normalized loudness value in [0,1].
// Before attachment, and after Stop, it returns zero.
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Running reports whether the refresh loop is active.
func (m *Meter) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stop cancels the refresh loop and the track tap and zeroes the level.
// Stopping an idle meter is a no-op; the meter can be re-attached later.
func (m *Meter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelTap != nil {
		m.cancelTap()
		m.cancelTap = nil
	}
	if m.running {
		close(m.stopCh)
		m.running = false

		logrus.WithFields(logrus.Fields{
			"function": "Meter.Stop",
		}).Info("Level metering stopped")
	}
	m.level = 0
	m.analyser.Reset()
}
