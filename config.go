package voicesession

import (
	"github.com/sirupsen/logrus"

	"github.com/vtutor/voicesession/rtc"
)

// Default capture settings. These mirror what the tutoring client requests
// from the browser: processed mono speech at the Opus-native rate.
const (
	DefaultSampleRate   uint32 = 48000
	DefaultChannelCount uint8  = 1
	DefaultBitRate      uint32 = 64000
)

// AudioConfig carries the signal-processing toggles and capture parameters
// for a session. The config is merged with defaults at construction and is
// immutable after the session starts.
//
// BitRate is advisory only: it is recorded and handed to the transport as a
// hint but not enforced by this layer.
type AudioConfig struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       uint32
	ChannelCount     uint8
	BitRate          uint32
}

// DefaultAudioConfig returns the standard configuration: echo cancellation,
// noise suppression and auto gain all enabled, 48kHz mono at 64kbps.
//
// Callers overriding individual fields should start from this value so the
// boolean toggles keep their documented defaults.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       DefaultSampleRate,
		ChannelCount:     DefaultChannelCount,
		BitRate:          DefaultBitRate,
	}
}

// normalize fills unset numeric fields with their defaults.
func (c AudioConfig) normalize() AudioConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ChannelCount == 0 {
		c.ChannelCount = DefaultChannelCount
	}
	if c.BitRate == 0 {
		c.BitRate = DefaultBitRate
	}

	logrus.WithFields(logrus.Fields{
		"function":          "AudioConfig.normalize",
		"echo_cancellation": c.EchoCancellation,
		"noise_suppression": c.NoiseSuppression,
		"auto_gain_control": c.AutoGainControl,
		"sample_rate":       c.SampleRate,
		"channel_count":     c.ChannelCount,
		"bit_rate":          c.BitRate,
	}).Debug("Audio configuration resolved")

	return c
}

// constraints converts the config to the capture constraints handed to the
// transport when acquiring the local device.
func (c AudioConfig) constraints(deviceID string) rtc.CaptureConstraints {
	return rtc.CaptureConstraints{
		DeviceID:         deviceID,
		EchoCancellation: c.EchoCancellation,
		NoiseSuppression: c.NoiseSuppression,
		AutoGainControl:  c.AutoGainControl,
		SampleRate:       c.SampleRate,
		ChannelCount:     c.ChannelCount,
	}
}
