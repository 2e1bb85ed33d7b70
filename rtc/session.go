package rtc

import (
	"context"
	"errors"
)

// Sentinel errors for device acquisition and track operations.
// These enable reliable error classification using errors.Is().
var (
	// ErrPermissionDenied indicates the platform refused capture access.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrDeviceNotFound indicates the requested device id does not exist.
	ErrDeviceNotFound = errors.New("audio device not found")

	// ErrTrackStopped indicates an operation on a stopped track.
	ErrTrackStopped = errors.New("track has been stopped")

	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")
)

// Session is the minimal surface of a real-time media session the audio
// manager binds to. It deliberately excludes room membership, data channels
// and video so the manager can work with any transport implementation.
type Session interface {
	// OnTrackSubscribed registers a handler invoked whenever a remote
	// track becomes available. Handlers are invoked from the session's
	// event dispatch and must not block.
	OnTrackSubscribed(fn func(track RemoteTrack))

	// OnConnectionQualityChanged registers a handler for transport-pushed
	// quality changes. Events are delivered in emission order.
	OnConnectionQualityChanged(fn func(quality ConnectionQuality))

	// OnDisconnected registers a handler invoked once when the session
	// loses its transport connection.
	OnDisconnected(fn func(reason string))

	// PublishAudio acquires a local capture source honoring the given
	// constraints and publishes it to the session. Device-acquisition
	// failures are returned to the caller and are not retried.
	PublishAudio(ctx context.Context, constraints CaptureConstraints) (LocalTrack, error)

	// Stats returns the current outbound statistics for the published
	// audio track. Statistics the transport does not expose are zero.
	Stats() (OutboundStats, error)

	// Close tears down the session and releases transport resources.
	Close() error
}

// StatsSource is the statistics query surface consumed by the quality
// sampler. Session satisfies it.
type StatsSource interface {
	Stats() (OutboundStats, error)
}

// LocalTrack is the published local audio track.
type LocalTrack interface {
	// ID returns the track identifier.
	ID() string

	// SetMuted flips the published state of the track. The effect is
	// visible to remote participants.
	SetMuted(muted bool) error

	// IsMuted reports the current published state.
	IsMuted() bool

	// SetDevice swaps the underlying capture device on the existing
	// track. Fails with ErrDeviceNotFound if the id is invalid.
	SetDevice(deviceID string) error

	// Stop ends capture and unpublishes the track.
	Stop() error
}

// RemoteTrack is a subscribed remote audio track. Decoded PCM frames can be
// tapped for analysis without interfering with playback.
type RemoteTrack interface {
	// ID returns the track identifier.
	ID() string

	// Kind returns the media kind of the track.
	Kind() TrackKind

	// OnPCM registers a tap receiving decoded PCM frames as they arrive.
	// The returned cancel function removes the tap.
	OnPCM(fn func(pcm []int16, sampleRate uint32)) (cancel func())
}

// DeviceEnumerator reports the current set of audio input devices known to
// the host platform. Pure query, no side effects.
type DeviceEnumerator interface {
	ListAudioDevices() ([]DeviceInfo, error)
}

// CaptureProvider abstracts the platform capture API. Open acquires a
// capture source for the device named in the constraints (empty means the
// platform default).
type CaptureProvider interface {
	DeviceEnumerator

	Open(constraints CaptureConstraints) (CaptureSource, error)
}

// CaptureSource is an open local capture stream delivering fixed-duration
// PCM frames.
type CaptureSource interface {
	// DeviceID returns the id of the device backing this source.
	DeviceID() string

	// ReadFrame blocks until the next capture frame is available and
	// returns it as interleaved PCM samples.
	ReadFrame() ([]int16, error)

	// Close releases the device.
	Close() error
}
