package webrtc

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vtutor/voicesession/rtc"
)

// TestCollectOutboundStats verifies the report entries fold into the
// outbound surface with seconds converted to durations.
func TestCollectOutboundStats(t *testing.T) {
	report := webrtc.StatsReport{
		"outbound-audio": webrtc.OutboundRTPStreamStats{
			Kind:        "audio",
			PacketsSent: 5000,
		},
		"remote-inbound-audio": webrtc.RemoteInboundRTPStreamStats{
			Kind:          "audio",
			PacketsLost:   50,
			Jitter:        0.004,
			RoundTripTime: 0.120,
		},
	}

	stats := collectOutboundStats(report)

	if stats.PacketsSent != 5000 {
		t.Errorf("Expected 5000 packets sent, got %d", stats.PacketsSent)
	}
	if stats.PacketsLost != 50 {
		t.Errorf("Expected 50 packets lost, got %d", stats.PacketsLost)
	}
	if stats.Jitter != 4*time.Millisecond {
		t.Errorf("Expected 4ms jitter, got %v", stats.Jitter)
	}
	if stats.RoundTripTime != 120*time.Millisecond {
		t.Errorf("Expected 120ms RTT, got %v", stats.RoundTripTime)
	}
}

// TestCollectOutboundStatsIgnoresVideo verifies non-audio entries do not
// pollute the audio surface.
func TestCollectOutboundStatsIgnoresVideo(t *testing.T) {
	report := webrtc.StatsReport{
		"outbound-video": webrtc.OutboundRTPStreamStats{
			Kind:        "video",
			PacketsSent: 99999,
		},
	}

	stats := collectOutboundStats(report)
	if stats.PacketsSent != 0 {
		t.Errorf("Video packets must not count, got %d", stats.PacketsSent)
	}
}

// TestCollectOutboundStatsCandidatePairFallback verifies the nominated
// pair RTT is used only when no remote inbound report carries one.
func TestCollectOutboundStatsCandidatePairFallback(t *testing.T) {
	report := webrtc.StatsReport{
		"candidate-pair": webrtc.ICECandidatePairStats{
			Nominated:            true,
			CurrentRoundTripTime: 0.080,
		},
	}

	stats := collectOutboundStats(report)
	if stats.RoundTripTime != 80*time.Millisecond {
		t.Errorf("Expected fallback 80ms RTT, got %v", stats.RoundTripTime)
	}
}

// TestCollectOutboundStatsEmptyReport verifies missing statistics default
// to zero rather than failing.
func TestCollectOutboundStatsEmptyReport(t *testing.T) {
	stats := collectOutboundStats(webrtc.StatsReport{})
	if stats != (rtc.OutboundStats{}) {
		t.Errorf("Expected zeroed stats for an empty report, got %+v", stats)
	}
}

// TestDeriveQuality buckets raw statistics into discrete levels.
func TestDeriveQuality(t *testing.T) {
	tests := []struct {
		name     string
		stats    rtc.OutboundStats
		expected rtc.ConnectionQuality
	}{
		{
			name:     "clean low latency link",
			stats:    rtc.OutboundStats{PacketsSent: 1000, PacketsLost: 5, RoundTripTime: 40 * time.Millisecond},
			expected: rtc.QualityExcellent,
		},
		{
			name:     "moderate loss",
			stats:    rtc.OutboundStats{PacketsSent: 1000, PacketsLost: 20, RoundTripTime: 40 * time.Millisecond},
			expected: rtc.QualityGood,
		},
		{
			name:     "high latency",
			stats:    rtc.OutboundStats{PacketsSent: 1000, PacketsLost: 0, RoundTripTime: 400 * time.Millisecond},
			expected: rtc.QualityPoor,
		},
		{
			name:     "heavy loss",
			stats:    rtc.OutboundStats{PacketsSent: 1000, PacketsLost: 100, RoundTripTime: 40 * time.Millisecond},
			expected: rtc.QualityPoor,
		},
		{
			name:     "no traffic yet stays unknown",
			stats:    rtc.OutboundStats{},
			expected: rtc.QualityUnknown,
		},
		{
			name:     "candidate pair RTT without packets is enough to bucket",
			stats:    rtc.OutboundStats{RoundTripTime: 40 * time.Millisecond},
			expected: rtc.QualityExcellent,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := deriveQuality(test.stats); got != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, got)
			}
		})
	}
}
