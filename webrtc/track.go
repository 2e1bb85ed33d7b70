package webrtc

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/opus"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"

	"github.com/vtutor/voicesession/rtc"
)

// frameDuration is the capture frame length pumped into the sample track.
const frameDuration = 20 * time.Millisecond

// decodeBufferSize holds up to 40ms of decoded 48kHz samples, the largest
// frame the decoder produces.
const decodeBufferSize = 1920 * 2

// localTrack implements rtc.LocalTrack over a static sample track fed by a
// capture source pump. Muting substitutes silence at the source so packet
// timing stays intact and the published state flips for remote peers.
type localTrack struct {
	mu sync.Mutex

	sample      *webrtc.TrackLocalStaticSample
	sender      *webrtc.RTPSender
	source      rtc.CaptureSource
	provider    rtc.CaptureProvider
	constraints rtc.CaptureConstraints
	encoder     *PCMEncoder

	muted   bool
	stopped bool
	stopCh  chan struct{}
}

func newLocalTrack(source rtc.CaptureSource, provider rtc.CaptureProvider, constraints rtc.CaptureConstraints) (*localTrack, error) {
	sample, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: constraints.SampleRate,
		Channels:  uint16(constraints.ChannelCount),
	}, "audio", "voicesession")
	if err != nil {
		return nil, fmt.Errorf("failed to create local track: %w", err)
	}

	t := &localTrack{
		sample:      sample,
		source:      source,
		provider:    provider,
		constraints: constraints,
		encoder:     NewPCMEncoder(constraints.SampleRate),
		stopCh:      make(chan struct{}),
	}

	go t.pump()
	return t, nil
}

// pump reads capture frames and writes them to the sample track until the
// track is stopped. Read errors end the pump; the transport treats a
// silent sender as muted rather than failed.
func (t *localTrack) pump() {
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		t.mu.Lock()
		source := t.source
		muted := t.muted
		t.mu.Unlock()

		if source == nil {
			return
		}

		pcm, err := source.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logrus.WithFields(logrus.Fields{
					"function": "localTrack.pump",
					"error":    err.Error(),
				}).Warn("Capture read failed, stopping pump")
			}
			return
		}

		if muted {
			for i := range pcm {
				pcm[i] = 0
			}
		}

		data, err := t.encoder.Encode(pcm)
		if err != nil {
			continue
		}

		err = t.sample.WriteSample(media.Sample{Data: data, Duration: frameDuration})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "localTrack.pump",
				"error":    err.Error(),
			}).Debug("Sample write failed")
		}
	}
}

func (t *localTrack) ID() string { return t.sample.ID() }

func (t *localTrack) SetMuted(muted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return rtc.ErrTrackStopped
	}
	t.muted = muted
	return nil
}

func (t *localTrack) IsMuted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// SetDevice swaps the capture source under the running pump. The new
// device is opened before the old one is released so a failed switch
// leaves the track on its current device.
func (t *localTrack) SetDevice(deviceID string) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return rtc.ErrTrackStopped
	}
	constraints := t.constraints
	constraints.DeviceID = deviceID
	provider := t.provider
	t.mu.Unlock()

	source, err := provider.Open(constraints)
	if err != nil {
		return fmt.Errorf("failed to open device %q: %w", deviceID, err)
	}

	t.mu.Lock()
	old := t.source
	t.source = source
	t.constraints = constraints
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function":  "localTrack.SetDevice",
		"device_id": deviceID,
	}).Info("Capture device switched")

	return nil
}

func (t *localTrack) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	source := t.source
	t.source = nil
	close(t.stopCh)
	t.mu.Unlock()

	if source != nil {
		source.Close()
	}
	return nil
}

// remoteTrack implements rtc.RemoteTrack. A decode pump reads RTP from the
// subscribed track, decodes Opus payloads to PCM and fans frames out to
// registered taps.
type remoteTrack struct {
	mu      sync.Mutex
	track   *webrtc.TrackRemote
	decoder opus.Decoder
	nextTap int
	taps    map[int]func([]int16, uint32)
	stopped bool
}

func newRemoteTrack(track *webrtc.TrackRemote) *remoteTrack {
	t := &remoteTrack{
		track:   track,
		decoder: opus.NewDecoder(),
		taps:    make(map[int]func([]int16, uint32)),
	}
	go t.pump()
	return t
}

func (t *remoteTrack) ID() string          { return t.track.ID() }
func (t *remoteTrack) Kind() rtc.TrackKind { return rtc.TrackKindAudio }

func (t *remoteTrack) OnPCM(fn func(pcm []int16, sampleRate uint32)) func() {
	t.mu.Lock()
	id := t.nextTap
	t.nextTap++
	t.taps[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.taps, id)
		t.mu.Unlock()
	}
}

// pump reads and decodes until the track ends or the session stops it.
func (t *remoteTrack) pump() {
	output := make([]byte, decodeBufferSize)

	for {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}

		packet, _, err := t.track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logrus.WithFields(logrus.Fields{
					"function": "remoteTrack.pump",
					"error":    err.Error(),
				}).Debug("RTP read ended")
			}
			return
		}

		if len(packet.Payload) == 0 {
			continue
		}

		pcm, sampleRate, err := t.decode(packet.Payload, output)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "remoteTrack.pump",
				"error":    err.Error(),
			}).Trace("Opus decode failed, frame dropped")
			continue
		}

		t.mu.Lock()
		taps := make([]func([]int16, uint32), 0, len(t.taps))
		for _, fn := range t.taps {
			taps = append(taps, fn)
		}
		t.mu.Unlock()

		for _, fn := range taps {
			fn(pcm, sampleRate)
		}
	}
}

// decode converts one Opus payload to mono PCM samples.
func (t *remoteTrack) decode(payload []byte, output []byte) ([]int16, uint32, error) {
	bandwidth, isStereo, err := t.decoder.Decode(payload, output)
	if err != nil {
		return nil, 0, fmt.Errorf("opus decode failed: %w", err)
	}

	sampleCount := len(output) / 2
	if isStereo {
		sampleCount /= 2
	}

	pcm := make([]int16, sampleCount)
	for i := 0; i < sampleCount; i++ {
		pcm[i] = int16(output[i*2]) | int16(output[i*2+1])<<8
	}

	return pcm, uint32(bandwidth.SampleRate()), nil
}

func (t *remoteTrack) stop() {
	t.mu.Lock()
	t.stopped = true
	t.taps = make(map[int]func([]int16, uint32))
	t.mu.Unlock()
}
