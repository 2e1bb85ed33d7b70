package webrtc

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// PCMEncoder frames capture samples for the sample track as little-endian
// PCM. pion/opus is decode-only, so outbound frames are carried as PCM
// until an Opus encoder lands; the interface keeps call sites stable for
// that swap.
type PCMEncoder struct {
	sampleRate uint32
}

// NewPCMEncoder creates an encoder for the given capture rate.
func NewPCMEncoder(sampleRate uint32) *PCMEncoder {
	logrus.WithFields(logrus.Fields{
		"function":    "NewPCMEncoder",
		"sample_rate": sampleRate,
	}).Debug("Creating PCM frame encoder")

	return &PCMEncoder{sampleRate: sampleRate}
}

// Encode converts interleaved samples to little-endian bytes.
func (e *PCMEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty PCM frame")
	}

	data := make([]byte, len(pcm)*2)
	for i, sample := range pcm {
		data[i*2] = byte(sample)
		data[i*2+1] = byte(sample >> 8)
	}
	return data, nil
}

// SampleRate returns the encoder's configured rate.
func (e *PCMEncoder) SampleRate() uint32 {
	return e.sampleRate
}
