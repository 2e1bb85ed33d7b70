package rtc

import (
	"fmt"
	"time"
)

// ConnectionQuality is the discrete, transport-reported health indicator
// for a participant's network link.
type ConnectionQuality int

const (
	// QualityUnknown indicates the transport has not yet assessed the link
	QualityUnknown ConnectionQuality = iota
	// QualityPoor indicates significant packet loss or latency
	QualityPoor
	// QualityGood indicates a usable link with minor issues
	QualityGood
	// QualityExcellent indicates optimal link conditions
	QualityExcellent
)

// String returns the string representation of ConnectionQuality.
func (q ConnectionQuality) String() string {
	switch q {
	case QualityUnknown:
		return "Unknown"
	case QualityPoor:
		return "Poor"
	case QualityGood:
		return "Good"
	case QualityExcellent:
		return "Excellent"
	default:
		return fmt.Sprintf("Unknown(%d)", int(q))
	}
}

// TrackKind identifies the media type carried by a track.
type TrackKind string

const (
	// TrackKindAudio is an audio track
	TrackKindAudio TrackKind = "audio"
	// TrackKindVideo is a video track
	TrackKindVideo TrackKind = "video"
)

// OutboundStats is the per-report statistics surface for the published
// audio track, as reported by the transport layer.
type OutboundStats struct {
	// PacketsSent is the total number of RTP packets sent
	PacketsSent uint64
	// PacketsLost is the total number of packets reported lost by the
	// remote end
	PacketsLost uint64
	// Jitter is the inter-packet arrival variance reported by the remote end
	Jitter time.Duration
	// RoundTripTime is the most recent RTT estimate
	RoundTripTime time.Duration
}

// DeviceInfo describes one audio input device reported by the host platform.
type DeviceInfo struct {
	// ID is the stable device identifier used with SetDevice
	ID string
	// Label is a human-readable device name
	Label string
	// Default reports whether this is the platform default input
	Default bool
}

// CaptureConstraints carries the signal-processing options requested when
// acquiring a local capture source. Values mirror the manager's AudioConfig
// and are fixed for the lifetime of the source.
type CaptureConstraints struct {
	DeviceID         string
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       uint32
	ChannelCount     uint8
}
