package quality

import (
	"time"

	"github.com/vtutor/voicesession/rtc"
)

// Thresholds defines the descending cutoffs used to classify a metrics
// snapshot. Applications can customize these values; most callers should
// start from DefaultThresholds.
type Thresholds struct {
	// Excellent requires transport quality Excellent plus both cutoffs
	ExcellentLatency time.Duration // < 100ms
	ExcellentLoss    float64       // < 1.0%

	// Good requires transport quality Good plus both cutoffs
	GoodLatency time.Duration // < 200ms
	GoodLoss    float64       // < 3.0%

	// Fair ignores transport quality and uses latency/loss only
	FairLatency time.Duration // < 300ms
	FairLoss    float64       // < 5.0%
}

// DefaultThresholds returns the standard assessment thresholds.
//
// These values follow common VoIP guidance: sub-100ms round trips with
// under 1% loss are indistinguishable from excellent, and anything past
// 300ms or 5% loss is noticeably degraded.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		ExcellentLatency: 100 * time.Millisecond,
		ExcellentLoss:    1.0,
		GoodLatency:      200 * time.Millisecond,
		GoodLoss:         3.0,
		FairLatency:      300 * time.Millisecond,
		FairLoss:         5.0,
	}
}

// Assess maps a metrics snapshot to a quality level.
//
// Buckets are evaluated top-down and the first match wins:
//   - Excellent: transport quality Excellent, latency below the excellent
//     cutoff and loss below the excellent cutoff.
//   - Good: transport quality Good, or latency and loss both below the
//     good cutoffs.
//   - Fair: latency and loss below the fair cutoffs, regardless of the
//     transport-reported quality.
//   - Poor: everything else.
//
// A nil thresholds argument uses DefaultThresholds.
func Assess(m Metrics, t *Thresholds) Level {
	if t == nil {
		t = DefaultThresholds()
	}

	switch {
	case m.ConnectionQuality == rtc.QualityExcellent &&
		m.Latency < t.ExcellentLatency &&
		m.PacketLoss < t.ExcellentLoss:
		return LevelExcellent
	case m.ConnectionQuality == rtc.QualityGood ||
		(m.Latency < t.GoodLatency && m.PacketLoss < t.GoodLoss):
		return LevelGood
	case m.Latency < t.FairLatency && m.PacketLoss < t.FairLoss:
		return LevelFair
	default:
		return LevelPoor
	}
}
