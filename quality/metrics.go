package quality

import (
	"fmt"
	"time"

	"github.com/vtutor/voicesession/rtc"
)

// Metrics is the session quality snapshot maintained by the Sampler.
//
// The snapshot is owned exclusively by the sampler and replaced wholesale on
// each sampling tick; subscribers and Snapshot callers always receive
// a copy.
type Metrics struct {
	// Latency is the transport round-trip time
	Latency time.Duration
	// PacketLoss is the lost/sent ratio as a percentage (0.0-100.0)
	PacketLoss float64
	// Jitter is the inter-packet arrival variance
	Jitter time.Duration
	// ConnectionQuality is the transport-reported link health
	ConnectionQuality rtc.ConnectionQuality
	// AudioLevel is the normalized remote loudness (0.0-1.0)
	AudioLevel float64
	// Timestamp is when the snapshot was taken
	Timestamp time.Time
}

// Level represents the overall session quality assessment bucket.
type Level int

const (
	// LevelExcellent indicates optimal session quality
	LevelExcellent Level = iota
	// LevelGood indicates good session quality with minor issues
	LevelGood
	// LevelFair indicates acceptable quality with noticeable issues
	LevelFair
	// LevelPoor indicates poor quality with significant problems
	LevelPoor
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelExcellent:
		return "Excellent"
	case LevelGood:
		return "Good"
	case LevelFair:
		return "Fair"
	case LevelPoor:
		return "Poor"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}
