package quality

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vtutor/voicesession/rtc"
)

// DefaultSampleInterval is the statistics sampling cadence.
const DefaultSampleInterval = time.Second

// Sampler maintains the rolling Metrics snapshot for one audio session.
//
// While bound to a statistics source it samples once per interval, replacing
// the snapshot wholesale and publishing it to subscribers. Transport-pushed
// connection quality events update the snapshot immediately, independent of
// the timer. At most one sampling timer is active per instance; the timer
// terminates on its own once the bound source is cleared.
type Sampler struct {
	mu          sync.RWMutex
	source      rtc.StatsSource
	metrics     Metrics
	thresholds  *Thresholds
	interval    time.Duration
	levelFn     func() float64
	broadcaster *Broadcaster
	running     bool
}

// NewSampler creates a sampler with the given interval. A non-positive
// interval uses DefaultSampleInterval.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewSampler",
		"interval": interval,
	}).Debug("Creating quality sampler")

	return &Sampler{
		interval:    interval,
		thresholds:  DefaultThresholds(),
		broadcaster: NewBroadcaster(),
	}
}

// SetLevelFunc wires an audio level tap into the snapshot. The function is
// polled on each sampling tick; nil leaves AudioLevel at zero.
func (s *Sampler) SetLevelFunc(fn func() float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levelFn = fn
}

// Subscribe registers a listener receiving each published snapshot.
// It returns the listener's unsubscribe function.
func (s *Sampler) Subscribe(fn func(Metrics)) func() {
	return s.broadcaster.Subscribe(fn)
}

// Bind attaches the sampler to a statistics source and starts the sampling
// timer if it is not already running.
func (s *Sampler) Bind(source rtc.StatsSource) {
	if source == nil {
		return
	}

	s.mu.Lock()
	s.source = source
	alreadyRunning := s.running
	s.running = true
	s.mu.Unlock()

	if alreadyRunning {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Sampler.Bind",
		"interval": s.interval,
	}).Info("Quality sampling started")

	go s.loop()
}

// Unbind clears the statistics source. The sampling timer notices the
// cleared binding on its next tick and stops; any in-flight tick becomes a
// no-op.
func (s *Sampler) Unbind() {
	s.mu.Lock()
	s.source = nil
	s.mu.Unlock()
}

// loop is the sampling timer. It exits once the source binding is cleared.
func (s *Sampler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		source := s.source
		if source == nil {
			s.running = false
			s.mu.Unlock()

			logrus.WithFields(logrus.Fields{
				"function": "Sampler.loop",
			}).Info("Quality sampling stopped, source cleared")
			return
		}
		s.mu.Unlock()

		s.sample(source)
	}
}

// sample reads the outbound statistics and replaces the snapshot. A failed
// statistics read zeroes the affected metrics rather than failing the tick.
func (s *Sampler) sample(source rtc.StatsSource) {
	stats, err := source.Stats()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Sampler.sample",
			"error":    err.Error(),
		}).Debug("Statistics unavailable, metrics default to zero")
		stats = rtc.OutboundStats{}
	}

	s.mu.Lock()
	next := Metrics{
		Latency:           stats.RoundTripTime,
		PacketLoss:        packetLossPercent(stats.PacketsLost, stats.PacketsSent),
		Jitter:            stats.Jitter,
		ConnectionQuality: s.metrics.ConnectionQuality,
		Timestamp:         time.Now(),
	}
	if s.levelFn != nil {
		next.AudioLevel = s.levelFn()
	}
	s.metrics = next
	s.mu.Unlock()

	s.broadcaster.Publish(next)
}

// packetLossPercent derives the loss percentage from raw counters.
// Zero packets sent means zero loss, avoiding the divide by zero.
func packetLossPercent(lost, sent uint64) float64 {
	if sent == 0 {
		return 0
	}
	return float64(lost) / float64(sent) * 100.0
}

// SetConnectionQuality applies a transport-pushed quality change to the
// snapshot immediately, independent of the sampling timer. Calls after
// Unbind still update the snapshot but nothing further is published.
func (s *Sampler) SetConnectionQuality(q rtc.ConnectionQuality) {
	s.mu.Lock()
	previous := s.metrics.ConnectionQuality
	s.metrics.ConnectionQuality = q
	s.mu.Unlock()

	if previous != q {
		logrus.WithFields(logrus.Fields{
			"function": "Sampler.SetConnectionQuality",
			"previous": previous.String(),
			"current":  q.String(),
		}).Debug("Connection quality changed")
	}
}

// Snapshot returns a copy of the current metrics. Before the first tick
// (or after a failed Initialize upstream) this is the zeroed default.
func (s *Sampler) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// Assess classifies the current snapshot using the sampler's thresholds.
func (s *Sampler) Assess() Level {
	s.mu.RLock()
	m := s.metrics
	t := s.thresholds
	s.mu.RUnlock()
	return Assess(m, t)
}

// Running reports whether the sampling timer is active.
func (s *Sampler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
