package webrtc

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vtutor/voicesession/rtc"
)

// collectOutboundStats folds a statistics report into the outbound audio
// surface. Packets sent come from the local outbound stream entry; loss,
// jitter and round-trip time come from the remote inbound entry the peer
// reports back. Entries the report does not carry leave their fields zero.
func collectOutboundStats(report webrtc.StatsReport) rtc.OutboundStats {
	var out rtc.OutboundStats

	for _, s := range report {
		switch stats := s.(type) {
		case webrtc.OutboundRTPStreamStats:
			if stats.Kind != "" && stats.Kind != "audio" {
				continue
			}
			out.PacketsSent += uint64(stats.PacketsSent)

		case webrtc.RemoteInboundRTPStreamStats:
			if stats.Kind != "" && stats.Kind != "audio" {
				continue
			}
			if stats.PacketsLost > 0 {
				out.PacketsLost += uint64(stats.PacketsLost)
			}
			if stats.Jitter > 0 {
				out.Jitter = secondsToDuration(stats.Jitter)
			}
			if stats.RoundTripTime > 0 {
				out.RoundTripTime = secondsToDuration(stats.RoundTripTime)
			}

		case webrtc.ICECandidatePairStats:
			// Fallback RTT from the nominated pair when no remote
			// inbound report has arrived yet.
			if out.RoundTripTime == 0 && stats.Nominated && stats.CurrentRoundTripTime > 0 {
				out.RoundTripTime = secondsToDuration(stats.CurrentRoundTripTime)
			}
		}
	}

	return out
}

// secondsToDuration converts the report's float seconds to a Duration.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
