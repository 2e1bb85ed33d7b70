package voicesession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtutor/voicesession/quality"
	"github.com/vtutor/voicesession/rtc"
)

// mockLocalTrack records mute and device operations.
type mockLocalTrack struct {
	mu       sync.Mutex
	muted    bool
	deviceID string
	stopped  bool
	setErr   error
}

func (t *mockLocalTrack) ID() string { return "local-audio-1" }

func (t *mockLocalTrack) SetMuted(muted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.setErr != nil {
		return t.setErr
	}
	t.muted = muted
	return nil
}

func (t *mockLocalTrack) IsMuted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

func (t *mockLocalTrack) SetDevice(deviceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if deviceID == "" || deviceID == "missing" {
		return rtc.ErrDeviceNotFound
	}
	t.deviceID = deviceID
	return nil
}

func (t *mockLocalTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *mockLocalTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// mockSession is a controllable transport session. Like the real session
// implementation it redelivers an already-subscribed remote track
// synchronously when the track handler is registered.
type mockSession struct {
	mu             sync.Mutex
	publishErr     error
	local          *mockLocalTrack
	remote         rtc.RemoteTrack
	stats          rtc.OutboundStats
	onTrack        func(rtc.RemoteTrack)
	onQuality      func(rtc.ConnectionQuality)
	onDisconnect   func(string)
	closed         bool
	publishCalled  bool
	publishStarted chan struct{}
	publishGate    chan struct{}
}

func (s *mockSession) OnTrackSubscribed(fn func(rtc.RemoteTrack)) {
	s.mu.Lock()
	s.onTrack = fn
	remote := s.remote
	s.mu.Unlock()

	if fn != nil && remote != nil {
		fn(remote)
	}
}

func (s *mockSession) OnConnectionQualityChanged(fn func(rtc.ConnectionQuality)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onQuality = fn
}

func (s *mockSession) OnDisconnected(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

func (s *mockSession) PublishAudio(_ context.Context, _ rtc.CaptureConstraints) (rtc.LocalTrack, error) {
	s.mu.Lock()
	s.publishCalled = true
	started := s.publishStarted
	gate := s.publishGate
	err := s.publishErr
	s.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.local = &mockLocalTrack{}
	local := s.local
	s.mu.Unlock()
	return local, nil
}

func (s *mockSession) wasPublishCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishCalled
}

func (s *mockSession) Stats() (rtc.OutboundStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, nil
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockSession) pushQuality(q rtc.ConnectionQuality) {
	s.mu.Lock()
	fn := s.onQuality
	s.mu.Unlock()
	if fn != nil {
		fn(q)
	}
}

func (s *mockSession) disconnect(reason string) {
	s.mu.Lock()
	fn := s.onDisconnect
	s.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// mockRemoteTrack counts PCM taps and lets tests feed decoded frames.
type mockRemoteTrack struct {
	mu   sync.Mutex
	id   string
	taps map[uint64]func([]int16, uint32)
	next uint64
}

func (t *mockRemoteTrack) ID() string {
	return t.id
}

func (t *mockRemoteTrack) Kind() rtc.TrackKind {
	return rtc.TrackKindAudio
}

func (t *mockRemoteTrack) OnPCM(fn func(pcm []int16, sampleRate uint32)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.taps == nil {
		t.taps = make(map[uint64]func([]int16, uint32))
	}
	id := t.next
	t.next++
	t.taps[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.taps, id)
	}
}

func (t *mockRemoteTrack) push(pcm []int16, sampleRate uint32) {
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

func (t *mockRemoteTrack) tapCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.taps)
}

func newInitializedManager(t *testing.T) (*AudioManager, *mockSession) {
	t.Helper()

	mgr := NewAudioManager(DefaultAudioConfig(), nil)
	session := &mockSession{}
	require.NoError(t, mgr.Initialize(context.Background(), session))
	t.Cleanup(mgr.Cleanup)
	return mgr, session
}

func TestDefaultAudioConfig(t *testing.T) {
	cfg := DefaultAudioConfig()

	assert.True(t, cfg.EchoCancellation)
	assert.True(t, cfg.NoiseSuppression)
	assert.True(t, cfg.AutoGainControl)
	assert.Equal(t, uint32(48000), cfg.SampleRate)
	assert.Equal(t, uint8(1), cfg.ChannelCount)
	assert.Equal(t, uint32(64000), cfg.BitRate)
}

func TestAudioConfigNormalizeFillsZeroValues(t *testing.T) {
	cfg := AudioConfig{EchoCancellation: true}.normalize()

	assert.Equal(t, DefaultSampleRate, cfg.SampleRate)
	assert.Equal(t, DefaultChannelCount, cfg.ChannelCount)
	assert.Equal(t, DefaultBitRate, cfg.BitRate)
	assert.True(t, cfg.EchoCancellation)
	assert.False(t, cfg.NoiseSuppression, "normalize must not invent boolean defaults")
}

func TestInitializePublishesLocalTrack(t *testing.T) {
	mgr, session := newInitializedManager(t)

	assert.True(t, session.wasPublishCalled())
	assert.False(t, mgr.IsMuted())
	assert.NoError(t, mgr.ToggleMute())
	assert.True(t, mgr.IsMuted())
}

func TestInitializePropagatesDeviceFailure(t *testing.T) {
	mgr := NewAudioManager(DefaultAudioConfig(), nil)
	session := &mockSession{publishErr: rtc.ErrPermissionDenied}

	err := mgr.Initialize(context.Background(), session)
	require.Error(t, err)
	assert.ErrorIs(t, err, rtc.ErrPermissionDenied)

	// The manager stays uninitialized: metrics are the zeroed default and
	// a second Initialize is permitted.
	assert.Equal(t, quality.Metrics{}, mgr.GetMetrics())

	session.publishErr = nil
	require.NoError(t, mgr.Initialize(context.Background(), session))
	mgr.Cleanup()
}

func TestInitializeAttachesPreexistingRemoteTrack(t *testing.T) {
	track := &mockRemoteTrack{id: "remote-audio-1"}
	session := &mockSession{remote: track}
	mgr := NewAudioManager(DefaultAudioConfig(), nil)

	require.NoError(t, mgr.Initialize(context.Background(), session))
	defer mgr.Cleanup()

	assert.Equal(t, 1, track.tapCount(),
		"a track subscribed before Initialize must be metered")

	// Loud PCM on the redelivered track must surface as a volume level.
	frame := make([]int16, 4096)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 16000
		} else {
			frame[i] = -16000
		}
	}
	track.push(frame, 48000)

	deadline := time.Now().Add(2 * time.Second)
	for mgr.GetVolumeLevel() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Volume level never rose for a pre-subscribed remote track")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mgr.Cleanup()
	assert.Equal(t, 0, track.tapCount(), "Cleanup must cancel the meter tap")
}

func TestInitializeFailureUnwindsRemoteAttachment(t *testing.T) {
	track := &mockRemoteTrack{id: "remote-audio-1"}
	session := &mockSession{remote: track, publishErr: rtc.ErrPermissionDenied}
	mgr := NewAudioManager(DefaultAudioConfig(), nil)

	err := mgr.Initialize(context.Background(), session)
	require.ErrorIs(t, err, rtc.ErrPermissionDenied)

	assert.Equal(t, 0, track.tapCount(),
		"a failed Initialize must not leave the redelivered track tapped")
	assert.Equal(t, quality.Metrics{}, mgr.GetMetrics())

	// The manager is fully uninitialized again.
	session.mu.Lock()
	session.publishErr = nil
	session.mu.Unlock()
	require.NoError(t, mgr.Initialize(context.Background(), session))
	assert.Equal(t, 1, track.tapCount())
	mgr.Cleanup()
}

func TestConcurrentInitializeClaimsSingleBinding(t *testing.T) {
	session := &mockSession{
		publishStarted: make(chan struct{}),
		publishGate:    make(chan struct{}),
	}
	mgr := NewAudioManager(DefaultAudioConfig(), nil)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- mgr.Initialize(context.Background(), session)
	}()

	<-session.publishStarted

	// The binding is claimed while the first publish is still in flight,
	// so a second Initialize never reaches the transport.
	second := &mockSession{}
	assert.ErrorIs(t, mgr.Initialize(context.Background(), second), ErrAlreadyInitialized)
	assert.False(t, second.wasPublishCalled())

	close(session.publishGate)
	require.NoError(t, <-firstDone)
	mgr.Cleanup()
}

func TestInitializeIsNotReentrant(t *testing.T) {
	mgr, session := newInitializedManager(t)

	err := mgr.Initialize(context.Background(), session)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitializeNilSession(t *testing.T) {
	mgr := NewAudioManager(DefaultAudioConfig(), nil)
	assert.ErrorIs(t, mgr.Initialize(context.Background(), nil), ErrNoSession)
}

func TestControlsBeforeInitializeAreNoOps(t *testing.T) {
	mgr := NewAudioManager(DefaultAudioConfig(), nil)

	assert.ErrorIs(t, mgr.ToggleMute(), ErrNoLocalTrack)
	assert.ErrorIs(t, mgr.PushToTalkPress(), ErrNoLocalTrack)
	assert.ErrorIs(t, mgr.PushToTalkRelease(), ErrNoLocalTrack)
	assert.ErrorIs(t, mgr.SetAudioDevice("mic-2"), ErrNoLocalTrack)
	assert.True(t, mgr.IsMuted())
	assert.Equal(t, 0.0, mgr.GetVolumeLevel())

	devices, err := mgr.ListAudioDevices()
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestCleanupThenControlsAreNoOps(t *testing.T) {
	mgr, session := newInitializedManager(t)

	mgr.Cleanup()

	assert.True(t, session.local.isStopped(), "Cleanup must stop the local track")
	assert.ErrorIs(t, mgr.ToggleMute(), ErrNoLocalTrack)
	assert.ErrorIs(t, mgr.PushToTalkPress(), ErrNoLocalTrack)
	assert.NoError(t, mgr.SetVolume(0.5))
	assert.True(t, mgr.WaitForSamplerStop(2*time.Second), "sampling timer must stop after Cleanup")

	// Cleanup twice is harmless.
	mgr.Cleanup()
}

func TestPushToTalkFlow(t *testing.T) {
	mgr, session := newInitializedManager(t)

	require.NoError(t, mgr.EnablePushToTalk(true))
	assert.True(t, session.local.IsMuted(), "enabling push-to-talk mutes the track")

	require.NoError(t, mgr.PushToTalkPress())
	assert.False(t, session.local.IsMuted())

	require.NoError(t, mgr.PushToTalkRelease())
	assert.True(t, session.local.IsMuted())

	require.NoError(t, mgr.EnablePushToTalk(false))
	assert.False(t, session.local.IsMuted())

	assert.ErrorIs(t, mgr.PushToTalkPress(), ErrNoLocalTrack,
		"press without push-to-talk mode is a no-op")
}

func TestPushToTalkEnabledBeforeInitialize(t *testing.T) {
	mgr := NewAudioManager(DefaultAudioConfig(), nil)
	assert.ErrorIs(t, mgr.EnablePushToTalk(true), ErrNoLocalTrack)

	session := &mockSession{}
	require.NoError(t, mgr.Initialize(context.Background(), session))
	defer mgr.Cleanup()

	assert.True(t, session.local.IsMuted(), "track starts muted when push-to-talk was pre-enabled")
}

func TestSetAudioDevice(t *testing.T) {
	mgr, session := newInitializedManager(t)

	require.NoError(t, mgr.SetAudioDevice("mic-2"))
	assert.Equal(t, "mic-2", session.local.deviceID)

	err := mgr.SetAudioDevice("missing")
	assert.ErrorIs(t, err, rtc.ErrDeviceNotFound)
}

func TestConnectionQualityEventsUpdateSnapshot(t *testing.T) {
	mgr, session := newInitializedManager(t)

	session.pushQuality(rtc.QualityExcellent)
	assert.Equal(t, rtc.QualityExcellent, mgr.GetMetrics().ConnectionQuality)

	session.pushQuality(rtc.QualityPoor)
	assert.Equal(t, rtc.QualityPoor, mgr.GetMetrics().ConnectionQuality)
}

func TestDisconnectReleasesBindings(t *testing.T) {
	mgr, session := newInitializedManager(t)

	session.disconnect("transport closed")

	assert.True(t, session.local.isStopped())
	assert.ErrorIs(t, mgr.ToggleMute(), ErrNoLocalTrack)
}

func TestSubscribeReceivesSampledMetrics(t *testing.T) {
	mgr := NewAudioManager(DefaultAudioConfig(), nil)
	session := &mockSession{stats: rtc.OutboundStats{
		PacketsSent:   1000,
		PacketsLost:   10,
		RoundTripTime: 80 * time.Millisecond,
		Jitter:        3 * time.Millisecond,
	}}

	var mu sync.Mutex
	var got []quality.Metrics
	unsubscribe := mgr.Subscribe(func(m quality.Metrics) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, mgr.Initialize(context.Background(), session))
	defer mgr.Cleanup()

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("No metrics snapshot published within the deadline")
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	first := got[0]
	mu.Unlock()
	assert.Equal(t, 1.0, first.PacketLoss)
	assert.Equal(t, 80*time.Millisecond, first.Latency)
}

func TestSetVolumeIsDocumentedNoOp(t *testing.T) {
	mgr, _ := newInitializedManager(t)

	assert.NoError(t, mgr.SetVolume(0.7))
	assert.NoError(t, mgr.SetVolume(-3))
	assert.NoError(t, mgr.SetVolume(42))
}

// staticEnumerator is a fixed device list for ListAudioDevices tests.
type staticEnumerator struct{ devices []rtc.DeviceInfo }

func (e *staticEnumerator) ListAudioDevices() ([]rtc.DeviceInfo, error) {
	return e.devices, nil
}

func TestListAudioDevicesDelegates(t *testing.T) {
	enum := &staticEnumerator{devices: []rtc.DeviceInfo{
		{ID: "default", Label: "Built-in Microphone", Default: true},
		{ID: "usb-1", Label: "USB Headset"},
	}}
	mgr := NewAudioManager(DefaultAudioConfig(), enum)

	devices, err := mgr.ListAudioDevices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.True(t, devices[0].Default)
}

func TestToggleMutePropagatesTrackError(t *testing.T) {
	mgr, session := newInitializedManager(t)

	session.local.setErr = errors.New("device wedged")
	err := mgr.ToggleMute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device wedged")
}
